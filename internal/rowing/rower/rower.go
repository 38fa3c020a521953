// Package rower is the stroke engine: a state machine over the flywheel
// classification that splits rowing into drive and recovery phases and turns
// angular kinematics into linear rowing metrics.
//
// All metrics are expressed in flywheel spinning time, which lags the newest
// impulse by one flank. Per-phase metrics describe the last completed phase
// and are absent until that phase was long enough to be credible.
package rower

import (
	"fmt"
	"math"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/rowing/flywheel"
)

// maxCurveSamples bounds the preallocated drive curve buffers.
const maxCurveSamples = 4096

// Rower is the stroke engine. It is not safe for concurrent use.
type Rower struct {
	settings       config.RowerSettings
	flywheel       *flywheel.Flywheel
	sprocketRadius float64 // m

	state                State
	totalNumberOfStrokes int
	invariantViolations  int

	// Events of the last impulse.
	stateChanged    bool
	strokeCompleted bool

	drivePhaseStartTime            float64
	drivePhaseStartAngularPosition float64
	drivePhaseAngularDisplacement  float64
	driveCompleted                 bool
	driveDuration                  float64
	driveLinearDistance            float64
	driveLength                    float64

	recoveryPhaseStartTime            float64
	recoveryPhaseStartAngularPosition float64
	recoveryPhaseAngularDisplacement  float64
	recoveryCompleted                 bool
	recoveryDuration                  float64
	recoveryLinearDistance            float64

	cycleDuration       float64
	cycleLinearDistance float64
	cycleLinearVelocity float64
	cyclePower          float64

	totalLinearDistance            float64 // committed at phase ends
	preliminaryTotalLinearDistance float64 // includes the running phase

	live driveCurves // the drive in progress
	last driveCurves // the last completed drive
}

// New returns a stroke engine for the given machine.
func New(settings config.RowerSettings) (*Rower, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	capacity := int(math.Ceil(settings.MaximumStrokeTimeBeforePause / settings.MinimumTimeBetweenImpulses))
	if capacity > maxCurveSamples {
		capacity = maxCurveSamples
	}

	r := &Rower{
		settings:       settings,
		flywheel:       flywheel.New(settings),
		sprocketRadius: settings.SprocketRadius / 100,
		live:           newDriveCurves(capacity),
		last:           newDriveCurves(capacity),
	}
	r.Reset()
	return r, nil
}

// Settings returns the machine settings the engine was built with.
func (r *Rower) Settings() config.RowerSettings { return r.settings }

// Reset returns the engine to its initial state.
func (r *Rower) Reset() {
	r.flywheel.Reset()

	r.state = WaitingForDrive
	r.totalNumberOfStrokes = 0
	r.invariantViolations = 0
	r.stateChanged = false
	r.strokeCompleted = false

	r.drivePhaseStartTime = 0
	r.drivePhaseStartAngularPosition = 0
	r.drivePhaseAngularDisplacement = 0
	r.driveCompleted = false
	r.driveDuration = 0
	r.driveLinearDistance = 0
	r.driveLength = 0

	r.recoveryPhaseStartTime = 0
	r.recoveryPhaseStartAngularPosition = 0
	r.recoveryPhaseAngularDisplacement = 0
	r.recoveryCompleted = false
	r.recoveryDuration = 0
	r.recoveryLinearDistance = 0

	r.cycleDuration = 0
	r.cycleLinearDistance = 0
	r.cycleLinearVelocity = 0
	r.cyclePower = 0

	r.totalLinearDistance = 0
	r.preliminaryTotalLinearDistance = 0

	r.live.reset()
	r.last.reset()
}

// HandleRotationImpulse feeds the time in seconds since the previous impulse
// and advances the state machine by at most one transition.
func (r *Rower) HandleRotationImpulse(dt float64) error {
	r.stateChanged = false
	r.strokeCompleted = false

	r.flywheel.PushValue(dt)

	next, act, err := transition(r.state, r.conditions())
	if err != nil {
		r.invariantViolations++
		opsf("at %.4fs: %v", r.flywheel.SpinningTime(), err)
		return err
	}

	previous := r.state
	r.state = next
	r.apply(act)
	if next != previous {
		r.stateChanged = true
		diagf("at %.4fs: %v -> %v (%v)", r.flywheel.SpinningTime(), previous, next, act)
	}
	return nil
}

func (r *Rower) conditions() conditions {
	now := r.flywheel.SpinningTime()
	return conditions{
		aboveMinimumSpeed:  r.flywheel.IsAboveMinimumSpeed(),
		powered:            r.flywheel.IsPowered(),
		unpowered:          r.flywheel.IsUnpowered(),
		dwelling:           r.flywheel.IsDwelling(),
		firstStroke:        r.totalNumberOfStrokes <= 1,
		driveLongEnough:    now-r.drivePhaseStartTime >= r.settings.MinimumDriveTime,
		recoveryLongEnough: now-r.recoveryPhaseStartTime >= r.settings.MinimumRecoveryTime,
		pauseDue:           now-r.drivePhaseStartTime >= r.settings.MaximumStrokeTimeBeforePause,
	}
}

func (r *Rower) apply(act action) {
	switch act {
	case actionNone:
	case actionStartDrive:
		r.flywheel.MaintainStateAndMetrics()
		r.startDrivePhase()
	case actionStartRecovery:
		// Joined mid-stroke: count the stroke we are recovering from.
		r.flywheel.MaintainStateAndMetrics()
		r.totalNumberOfStrokes++
		r.startRecoveryPhase()
	case actionUpdateDriveEarly:
		if traceEnabled() {
			tracef("at %.4fs: no power after %.4fs of drive, waiting for minimum drive time %.2fs",
				r.flywheel.SpinningTime(), r.flywheel.SpinningTime()-r.drivePhaseStartTime, r.settings.MinimumDriveTime)
		}
		r.updateDrivePhase()
	case actionUpdateDrive:
		r.updateDrivePhase()
	case actionEndDriveStartRecovery:
		r.endDrivePhase()
		r.startRecoveryPhase()
	case actionUpdateRecoveryEarly:
		if traceEnabled() {
			tracef("at %.4fs: power after %.4fs of recovery, waiting for minimum recovery time %.2fs",
				r.flywheel.SpinningTime(), r.flywheel.SpinningTime()-r.recoveryPhaseStartTime, r.settings.MinimumRecoveryTime)
		}
		r.updateRecoveryPhase()
	case actionUpdateRecovery:
		r.updateRecoveryPhase()
	case actionEndRecoveryStartDrive:
		r.endRecoveryPhase()
		r.startDrivePhase()
	case actionPause:
		r.endRecoveryPhase()
		r.flywheel.MaintainStateOnly()
	}
}

func (r *Rower) startDrivePhase() {
	r.totalNumberOfStrokes++
	r.drivePhaseStartTime = r.flywheel.SpinningTime()
	r.drivePhaseStartAngularPosition = r.flywheel.AngularPosition()
	r.live.reset()
	r.updateDrivePhase()
}

func (r *Rower) updateDrivePhase() {
	displacement := r.flywheel.AngularPosition() - r.drivePhaseStartAngularPosition
	r.preliminaryTotalLinearDistance = r.totalLinearDistance + r.linearDistance(displacement)

	dt := r.flywheel.DeltaTime()
	torque := r.flywheel.Torque()
	omega := r.flywheel.AngularVelocity()
	r.live.force.push(dt, torque/r.sprocketRadius)
	r.live.velocity.push(dt, omega*r.sprocketRadius)
	r.live.power.push(dt, torque*omega)
}

func (r *Rower) endDrivePhase() {
	r.driveDuration = r.flywheel.SpinningTime() - r.drivePhaseStartTime
	r.drivePhaseAngularDisplacement = r.flywheel.AngularPosition() - r.drivePhaseStartAngularPosition
	r.driveLength = r.drivePhaseAngularDisplacement * r.sprocketRadius
	r.driveLinearDistance = r.linearDistance(r.drivePhaseAngularDisplacement)
	r.driveCompleted = true

	r.totalLinearDistance += r.driveLinearDistance
	r.preliminaryTotalLinearDistance = r.totalLinearDistance

	r.live, r.last = r.last, r.live
	r.updateCycle()

	diagf("stroke %d drive: %.3fs, %.3fm, length %.3fm, peak force %.1fN",
		r.totalNumberOfStrokes, r.driveDuration, r.driveLinearDistance, r.driveLength, r.last.force.peak)
}

func (r *Rower) startRecoveryPhase() {
	r.recoveryPhaseStartTime = r.flywheel.SpinningTime()
	r.recoveryPhaseStartAngularPosition = r.flywheel.AngularPosition()
	r.flywheel.MarkRecoveryPhaseStart()
	r.updateRecoveryPhase()
}

func (r *Rower) updateRecoveryPhase() {
	displacement := r.flywheel.AngularPosition() - r.recoveryPhaseStartAngularPosition
	r.preliminaryTotalLinearDistance = r.totalLinearDistance + r.linearDistance(displacement)
}

func (r *Rower) endRecoveryPhase() {
	r.recoveryDuration = r.flywheel.SpinningTime() - r.recoveryPhaseStartTime
	r.recoveryPhaseAngularDisplacement = r.flywheel.AngularPosition() - r.recoveryPhaseStartAngularPosition
	r.recoveryLinearDistance = r.linearDistance(r.recoveryPhaseAngularDisplacement)
	r.recoveryCompleted = true

	r.totalLinearDistance += r.recoveryLinearDistance
	r.preliminaryTotalLinearDistance = r.totalLinearDistance

	r.updateCycle()
	r.strokeCompleted = true

	// Distances above use the drag factor the recovery was rowed with.
	r.flywheel.MarkRecoveryPhaseCompleted()

	diagf("stroke %d recovery: %.3fs, %.3fm, drag factor %.1f",
		r.totalNumberOfStrokes, r.recoveryDuration, r.recoveryLinearDistance, r.flywheel.DragFactor()*1e6)
}

func (r *Rower) updateCycle() {
	if !r.driveCompleted || !r.recoveryCompleted {
		return
	}
	displacement := r.drivePhaseAngularDisplacement + r.recoveryPhaseAngularDisplacement
	r.cycleDuration = r.driveDuration + r.recoveryDuration
	r.cycleLinearDistance = r.driveLinearDistance + r.recoveryLinearDistance
	r.cycleLinearVelocity = r.linearVelocity(displacement, r.cycleDuration)
	r.cyclePower = r.power(displacement, r.cycleDuration)
}

// metersPerRadian is the boat distance one radian of flywheel rotation is
// worth at the current drag factor.
func (r *Rower) metersPerRadian() float64 {
	return math.Cbrt(r.flywheel.DragFactor() / r.settings.MagicConstant)
}

func (r *Rower) linearDistance(angularDisplacement float64) float64 {
	if angularDisplacement < 0 {
		opsf("at %.4fs: negative angular displacement %.4f rad, counting no distance",
			r.flywheel.SpinningTime(), angularDisplacement)
		return 0
	}
	return r.metersPerRadian() * angularDisplacement
}

func (r *Rower) linearVelocity(angularDisplacement, duration float64) float64 {
	if angularDisplacement < 0 || duration <= 0 {
		opsf("at %.4fs: no credible velocity for %.4f rad over %.4fs",
			r.flywheel.SpinningTime(), angularDisplacement, duration)
		return 0
	}
	return r.metersPerRadian() * angularDisplacement / duration
}

func (r *Rower) power(angularDisplacement, duration float64) float64 {
	if angularDisplacement < 0 || duration <= 0 {
		opsf("at %.4fs: no credible power for %.4f rad over %.4fs",
			r.flywheel.SpinningTime(), angularDisplacement, duration)
		return 0
	}
	omega := angularDisplacement / duration
	return r.flywheel.DragFactor() * omega * omega * omega
}

// commitDistance folds the running phase into the committed distance so an
// interrupted phase does not lose what was already rowed.
func (r *Rower) commitDistance() {
	r.totalLinearDistance = r.TotalLinearDistanceSinceStart()
	r.preliminaryTotalLinearDistance = r.totalLinearDistance
}

// AllowMovement lets a stopped engine detect strokes again.
func (r *Rower) AllowMovement() {
	if r.state == Stopped {
		r.state = WaitingForDrive
	}
}

// PauseMoving freezes the metrics and waits for the next drive.
func (r *Rower) PauseMoving() {
	r.commitDistance()
	r.flywheel.MaintainStateOnly()
	r.state = WaitingForDrive
}

// StopMoving freezes the metrics and ignores impulses until AllowMovement.
func (r *Rower) StopMoving() {
	r.commitDistance()
	r.flywheel.MaintainStateOnly()
	r.state = Stopped
}

// StrokeState returns the current phase.
func (r *Rower) StrokeState() State { return r.state }

// TotalNumberOfStrokes returns the strokes started since Reset.
func (r *Rower) TotalNumberOfStrokes() int { return r.totalNumberOfStrokes }

// TotalMovingTimeSinceStart returns the rowing time in seconds.
func (r *Rower) TotalMovingTimeSinceStart() float64 { return r.flywheel.SpinningTime() }

// TotalLinearDistanceSinceStart returns the distance in meters, including the
// phase in progress. It never decreases until Reset.
func (r *Rower) TotalLinearDistanceSinceStart() float64 {
	return math.Max(r.totalLinearDistance, r.preliminaryTotalLinearDistance)
}

// DriveLastStartTime returns the spinning time at which the last drive began.
func (r *Rower) DriveLastStartTime() float64 { return r.drivePhaseStartTime }

// InvariantViolations returns how many impulses met an uncovered state.
func (r *Rower) InvariantViolations() int { return r.invariantViolations }

func (r *Rower) driveCredible() bool {
	return r.driveCompleted && r.driveDuration >= r.settings.MinimumDriveTime
}

func (r *Rower) recoveryCredible() bool {
	return r.recoveryCompleted && r.recoveryDuration >= r.settings.MinimumRecoveryTime
}

func (r *Rower) cycleCredible() bool { return r.driveCredible() && r.recoveryCredible() }

func (r *Rower) ifCycle(v float64) Metric {
	if !r.cycleCredible() {
		return Metric{}
	}
	return present(v)
}

func (r *Rower) ifDrive(v float64) Metric {
	if !r.driveCredible() {
		return Metric{}
	}
	return present(v)
}

func (r *Rower) ifRecovery(v float64) Metric {
	if !r.recoveryCredible() {
		return Metric{}
	}
	return present(v)
}

// CycleDuration returns drive plus recovery duration in seconds.
func (r *Rower) CycleDuration() Metric { return r.ifCycle(r.cycleDuration) }

// CycleLinearDistance returns the distance of the last cycle in meters.
func (r *Rower) CycleLinearDistance() Metric { return r.ifCycle(r.cycleLinearDistance) }

// CycleLinearVelocity returns the average boat speed over the last cycle in m/s.
func (r *Rower) CycleLinearVelocity() Metric { return r.ifCycle(r.cycleLinearVelocity) }

// CyclePower returns the average power over the last cycle in watts.
func (r *Rower) CyclePower() Metric { return r.ifCycle(r.cyclePower) }

// DriveDuration returns the duration of the last drive in seconds.
func (r *Rower) DriveDuration() Metric { return r.ifDrive(r.driveDuration) }

// DriveLinearDistance returns the distance of the last drive in meters.
func (r *Rower) DriveLinearDistance() Metric { return r.ifDrive(r.driveLinearDistance) }

// DriveLength returns the handle travel of the last drive in meters.
func (r *Rower) DriveLength() Metric { return r.ifDrive(r.driveLength) }

// DriveAverageHandleForce returns the time-weighted mean handle force of
// the last drive in newtons.
func (r *Rower) DriveAverageHandleForce() Metric { return r.ifDrive(r.last.force.average()) }

// DrivePeakHandleForce returns the peak handle force of the last drive in
// newtons.
func (r *Rower) DrivePeakHandleForce() Metric { return r.ifDrive(r.last.force.peak) }

// DriveHandleForceCurve returns a copy of the last drive's force curve.
func (r *Rower) DriveHandleForceCurve() ([]float64, bool) {
	if !r.driveCredible() {
		return nil, false
	}
	return r.last.force.values(), true
}

// DriveHandleVelocityCurve returns a copy of the last drive's handle
// velocity curve.
func (r *Rower) DriveHandleVelocityCurve() ([]float64, bool) {
	if !r.driveCredible() {
		return nil, false
	}
	return r.last.velocity.values(), true
}

// DriveHandlePowerCurve returns a copy of the last drive's power curve.
func (r *Rower) DriveHandlePowerCurve() ([]float64, bool) {
	if !r.driveCredible() {
		return nil, false
	}
	return r.last.power.values(), true
}

// Curves returns copies of all curves of the last credible drive.
func (r *Rower) Curves() (Curves, bool) {
	if !r.driveCredible() {
		return Curves{}, false
	}
	return Curves{
		HandleForce:    r.last.force.values(),
		HandleVelocity: r.last.velocity.values(),
		HandlePower:    r.last.power.values(),
	}, true
}

// RecoveryDuration returns the duration of the last recovery in seconds.
func (r *Rower) RecoveryDuration() Metric { return r.ifRecovery(r.recoveryDuration) }

// RecoveryLinearDistance returns the distance of the last recovery in meters.
func (r *Rower) RecoveryLinearDistance() Metric { return r.ifRecovery(r.recoveryLinearDistance) }

// RecoveryDragFactor returns the calibrated drag factor in the conventional
// ×1e6 units, once it is reliable.
func (r *Rower) RecoveryDragFactor() Metric {
	if !r.flywheel.DragFactorIsReliable() {
		return Metric{}
	}
	return present(r.flywheel.DragFactor() * 1e6)
}

// InstantHandlePower returns torque·ω during a drive and 0 otherwise.
func (r *Rower) InstantHandlePower() float64 {
	if r.state != Drive {
		return 0
	}
	return r.flywheel.Torque() * r.flywheel.AngularVelocity()
}

// Flywheel returns the flywheel state.
func (r *Rower) Flywheel() flywheel.State { return r.flywheel.State() }

func (r *Rower) String() string {
	return fmt.Sprintf("%v stroke %d at %.2fs, %.1fm", r.state, r.totalNumberOfStrokes,
		r.TotalMovingTimeSinceStart(), r.TotalLinearDistanceSinceStart())
}
