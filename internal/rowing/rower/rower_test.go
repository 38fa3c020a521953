package rower

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/rowing/simulate"
)

// session builds a scripted sequence of impulse deltas on a Concept2 flywheel
// at its default drag factor.
type session struct {
	settings config.RowerSettings
	theta    float64
	drag     float64
	omega    float64
	deltas   []float64
}

func newSession(omega0 float64) *session {
	s := config.Concept2RowErg()
	return &session{
		settings: s,
		theta:    2 * math.Pi / float64(s.NumOfImpulsesPerRevolution),
		drag:     s.DragFactor * 1e-6,
		omega:    omega0,
	}
}

func (s *session) drive(alpha float64, n int) *session {
	dts, end := simulate.Accelerate(s.theta, s.omega, alpha, n)
	s.deltas = append(s.deltas, dts...)
	s.omega = end
	return s
}

func (s *session) coast(n int) *session {
	dts, end := simulate.Coast(s.theta, s.omega, s.drag, s.settings.FlywheelInertia, n)
	s.deltas = append(s.deltas, dts...)
	s.omega = end
	return s
}

func newRower(t *testing.T) *Rower {
	t.Helper()
	r, err := New(config.Concept2RowErg())
	require.NoError(t, err)
	return r
}

func feed(t *testing.T, r *Rower, deltas []float64) {
	t.Helper()
	for _, dt := range deltas {
		require.NoError(t, r.HandleRotationImpulse(dt))
	}
}

func TestNew_RejectsInvalidSettings(t *testing.T) {
	s := config.Concept2RowErg()
	s.FlankLength = 1
	_, err := New(s)
	assert.True(t, errors.Is(err, config.ErrInvalidSettings))
}

func TestRower_InitialState(t *testing.T) {
	r := newRower(t)

	assert.Equal(t, WaitingForDrive, r.StrokeState())
	assert.Equal(t, 0, r.TotalNumberOfStrokes())
	assert.Equal(t, 0.0, r.TotalMovingTimeSinceStart())
	assert.Equal(t, 0.0, r.TotalLinearDistanceSinceStart())
	assert.False(t, r.CycleDuration().Valid)
	assert.False(t, r.DriveDuration().Valid)
	assert.False(t, r.RecoveryDuration().Valid)
	assert.False(t, r.RecoveryDragFactor().Valid)
	_, ok := r.DriveHandleForceCurve()
	assert.False(t, ok)
}

func TestRower_AcceleratingImpulsesStartADrive(t *testing.T) {
	r := newRower(t)
	s := newSession(70).drive(40, 30)

	var changes int
	for _, dt := range s.deltas {
		require.NoError(t, r.HandleRotationImpulse(dt))
		if r.Snapshot().StateChanged {
			changes++
		}
	}

	assert.Equal(t, Drive, r.StrokeState())
	assert.Equal(t, 1, r.TotalNumberOfStrokes())
	assert.Equal(t, 1, changes)
	assert.Greater(t, r.InstantHandlePower(), 0.0)
}

func TestRower_DecelerationEndsTheDrive(t *testing.T) {
	r := newRower(t)
	s := newSession(70).drive(40, 60)
	feed(t, r, s.deltas)
	require.Equal(t, Drive, r.StrokeState())

	s.deltas = s.deltas[:0]
	s.coast(40)
	feed(t, r, s.deltas)

	assert.Equal(t, Recovery, r.StrokeState())
	assert.Equal(t, 1, r.TotalNumberOfStrokes())
	assert.Equal(t, 0.0, r.InstantHandlePower())

	d, ok := r.DriveDuration().Get()
	require.True(t, ok, "a drive longer than the minimum is credible")
	assert.GreaterOrEqual(t, d, r.Settings().MinimumDriveTime)
	assert.InDelta(t, 0.74, d, 0.1)

	length, ok := r.DriveLength().Get()
	require.True(t, ok)
	assert.Greater(t, length, 0.0)

	force, ok := r.DriveHandleForceCurve()
	require.True(t, ok)
	assert.NotEmpty(t, force)
	peak := r.DrivePeakHandleForce().Or(0)
	average := r.DriveAverageHandleForce().Or(0)
	assert.Greater(t, peak, 0.0)
	assert.LessOrEqual(t, average, peak)
	for _, f := range force {
		assert.GreaterOrEqual(t, f, 0.0, "non-positive samples are recorded as 0")
		assert.LessOrEqual(t, f, peak)
	}

	assert.False(t, r.CycleDuration().Valid, "no recovery has completed yet")
	assert.False(t, r.CyclePower().Valid)
}

func TestRower_CycleMetricsNeedACredibleCycle(t *testing.T) {
	r := newRower(t)
	s := newSession(70).drive(40, 60).coast(150).drive(40, 60).coast(40)

	var (
		lastDistance float64
		lastTime     float64
		completions  int
		cycleAt      = -1
	)
	for i, dt := range s.deltas {
		require.NoError(t, r.HandleRotationImpulse(dt))
		snap := r.Snapshot()

		assert.GreaterOrEqual(t, snap.TotalLinearDistanceSinceStart, lastDistance, "distance decreased at impulse %d", i)
		assert.GreaterOrEqual(t, snap.TotalMovingTimeSinceStart, lastTime, "moving time decreased at impulse %d", i)
		lastDistance = snap.TotalLinearDistanceSinceStart
		lastTime = snap.TotalMovingTimeSinceStart

		if snap.StrokeCompleted {
			completions++
		}
		if snap.CycleDuration.Valid && cycleAt < 0 {
			cycleAt = i
			assert.True(t, snap.StrokeCompleted, "cycle metrics appear when a recovery completes")
			assert.Equal(t, Drive, snap.State)
			assert.Equal(t, 2, snap.TotalNumberOfStrokes)
		}
	}

	require.GreaterOrEqual(t, cycleAt, 60+150, "cycle metrics must not appear before the second drive")
	assert.Equal(t, 1, completions)

	cycle, _ := r.CycleDuration().Get()
	drive, _ := r.DriveDuration().Get()
	recovery, _ := r.RecoveryDuration().Get()
	assert.InDelta(t, drive+recovery, cycle, 1e-12)
	assert.InDelta(t, 0.74+1.72, cycle, 0.25)

	velocity, ok := r.CycleLinearVelocity().Get()
	require.True(t, ok)
	power, ok := r.CyclePower().Get()
	require.True(t, ok)
	// P = k·ω³ and v = (k/c)^(1/3)·ω, so P = c·v³.
	assert.InEpsilon(t, r.Settings().MagicConstant*velocity*velocity*velocity, power, 1e-6)

	distance, ok := r.CycleLinearDistance().Get()
	require.True(t, ok)
	assert.InEpsilon(t, velocity*cycle, distance, 1e-6)

	drag, ok := r.RecoveryDragFactor().Get()
	require.True(t, ok, "a clean recovery calibrates the drag factor")
	assert.InEpsilon(t, 110, drag, 0.02)
}

func TestRower_PausesWhenTheFlywheelDwells(t *testing.T) {
	r := newRower(t)
	s := newSession(70).drive(40, 60).coast(700)
	feed(t, r, s.deltas)

	assert.Equal(t, WaitingForDrive, r.StrokeState())
	assert.True(t, r.RecoveryDuration().Valid)

	moving := r.TotalMovingTimeSinceStart()
	distance := r.TotalLinearDistanceSinceStart()
	s.deltas = s.deltas[:0]
	s.coast(20)
	feed(t, r, s.deltas)

	assert.Equal(t, WaitingForDrive, r.StrokeState())
	assert.Equal(t, moving, r.TotalMovingTimeSinceStart(), "a paused session does not accumulate time")
	assert.Equal(t, distance, r.TotalLinearDistanceSinceStart())
}

func TestRower_Controls(t *testing.T) {
	t.Run("stop ignores impulses until allowed", func(t *testing.T) {
		r := newRower(t)
		r.StopMoving()
		s := newSession(70).drive(40, 30)
		feed(t, r, s.deltas)

		assert.Equal(t, Stopped, r.StrokeState())
		assert.Equal(t, 0, r.TotalNumberOfStrokes())

		r.AllowMovement()
		assert.Equal(t, WaitingForDrive, r.StrokeState())

		// The flywheel keeps accelerating from where it was.
		s.deltas = s.deltas[:0]
		feed(t, r, s.drive(40, 30).deltas)
		assert.Equal(t, Drive, r.StrokeState())
		assert.Equal(t, 1, r.TotalNumberOfStrokes())
	})

	t.Run("allow movement only leaves stopped", func(t *testing.T) {
		r := newRower(t)
		feed(t, r, newSession(70).drive(40, 30).deltas)
		require.Equal(t, Drive, r.StrokeState())

		r.AllowMovement()
		assert.Equal(t, Drive, r.StrokeState())
	})

	t.Run("pause keeps the distance rowed so far", func(t *testing.T) {
		r := newRower(t)
		feed(t, r, newSession(70).drive(40, 50).deltas)
		before := r.TotalLinearDistanceSinceStart()
		require.Greater(t, before, 0.0)

		r.PauseMoving()
		assert.Equal(t, WaitingForDrive, r.StrokeState())
		assert.Equal(t, before, r.TotalLinearDistanceSinceStart())

		feed(t, r, newSession(70).drive(40, 40).deltas)
		assert.GreaterOrEqual(t, r.TotalLinearDistanceSinceStart(), before)
	})

	t.Run("reset returns to the initial snapshot", func(t *testing.T) {
		r := newRower(t)
		feed(t, r, newSession(70).drive(40, 60).coast(150).drive(40, 30).deltas)
		require.Greater(t, r.TotalNumberOfStrokes(), 0)

		r.Reset()

		if diff := cmp.Diff(newRower(t).Snapshot(), r.Snapshot()); diff != "" {
			t.Errorf("Snapshot after Reset mismatch (-fresh +reset):\n%s", diff)
		}
	})
}

func TestRower_InvariantViolation(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	r := newRower(t)
	r.state = State(42)

	err := r.HandleRotationImpulse(0.01)

	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.Equal(t, State(42), r.StrokeState(), "state is left unchanged")
	assert.Equal(t, 1, r.InvariantViolations())
	assert.Contains(t, ops.String(), "invariant")
}

func TestRower_NegativeDisplacementCountsNoDistance(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	defer SetLogWriters(nil, nil, nil)

	r := newRower(t)
	assert.Equal(t, 0.0, r.linearDistance(-1))
	assert.Equal(t, 0.0, r.linearVelocity(1, 0))
	assert.NotEmpty(t, ops.String())
}

func TestSnapshot_JSON(t *testing.T) {
	r := newRower(t)
	data, err := json.Marshal(r.Snapshot())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "WaitingForDrive", raw["state"])
	assert.Nil(t, raw["cycle_duration"], "absent metrics encode as null")
	assert.Contains(t, raw, "cycle_duration")

	var back Snapshot
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(r.Snapshot(), back); diff != "" {
		t.Errorf("Snapshot JSON mismatch (-want +got):\n%s", diff)
	}
}
