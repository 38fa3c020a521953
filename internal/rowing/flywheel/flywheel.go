// Package flywheel turns impulse deltas from a flywheel sensor into angular
// kinematics.
//
// Every impulse advances the flywheel by a fixed angle. The (time, angle)
// series is fitted over a window of flankLength impulses and the velocity and
// acceleration are read at the oldest retained sample, where the fit is best
// conditioned. Accumulated metrics (spinning time, angular position) only
// advance for samples that have left the window, so everything the flywheel
// reports describes the moment just before the current flank.
//
// Drive and recovery are told apart by the trend of the impulse deltas: a
// powered flywheel accelerates, so deltas shrink; an unpowered one decays
// under drag, so deltas grow linearly in time with slope θ·k/I. That same
// slope, measured over a whole recovery, calibrates the drag factor k.
package flywheel

import (
	"math"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/rowing/regression"
)

// dragFactorScale converts the conventional drag factor units (×1e6) to SI.
const dragFactorScale = 1e-6

// State is a value copy of the flywheel query surface.
type State struct {
	DeltaTime           float64 `json:"delta_time"`
	SpinningTime        float64 `json:"spinning_time"`
	AngularPosition     float64 `json:"angular_position"`
	AngularVelocity     float64 `json:"angular_velocity"`
	AngularAcceleration float64 `json:"angular_acceleration"`
	Torque              float64 `json:"torque"`
	DragFactor          float64 `json:"drag_factor"`
	Dwelling            bool    `json:"dwelling"`
	Unpowered           bool    `json:"unpowered"`
	Powered             bool    `json:"powered"`
	AboveMinimumSpeed   bool    `json:"above_minimum_speed"`
}

// Flywheel is the kinematics and drag model. It is not safe for concurrent
// use; a single goroutine feeds it impulses and queries it.
type Flywheel struct {
	settings config.RowerSettings

	anglePerImpulse        float64
	flankLength            int
	minimumAngularVelocity float64
	minimumTorque          float64
	minimumDragSamples     int

	currentDt       *regression.MovingMedian
	deltaTime       *regression.OLSLinear
	angularDistance *regression.TSQuadratic
	drag            *regression.MovingMedian
	recoverySlope   *regression.MovingMedian
	recoveryDt      *regression.TSLinear

	maintainMetrics bool
	inRecoveryPhase bool

	totalNumberOfImpulses  int
	totalTimeSpinning      float64
	currentRawTime         float64
	currentCleanTime       float64
	currentAngularDistance float64

	// At the oldest sample of the current flank.
	velocityAtBeginFlank     float64
	accelerationAtBeginFlank float64
	torqueAtBeginFlank       float64

	// At the sample that most recently left the flank.
	deltaTimeBeforeFlank    float64
	velocityBeforeFlank     float64
	accelerationBeforeFlank float64
	torqueBeforeFlank       float64
}

// New returns a flywheel for the given machine. The settings are assumed to
// have been validated.
func New(settings config.RowerSettings) *Flywheel {
	theta := 2 * math.Pi / float64(settings.NumOfImpulsesPerRevolution)
	f := &Flywheel{
		settings:               settings,
		anglePerImpulse:        theta,
		flankLength:            settings.FlankLength,
		minimumAngularVelocity: theta / settings.MaximumTimeBetweenImpulses,
		// SprocketRadius is in cm.
		minimumTorque:      settings.MinimumForceBeforeStroke * settings.SprocketRadius / 100,
		minimumDragSamples: int(math.Floor(settings.MinimumRecoveryTime / settings.MaximumTimeBetweenImpulses)),

		currentDt:       regression.NewMovingMedian(settings.Smoothing, settings.MaximumTimeBetweenImpulses),
		deltaTime:       regression.NewOLSLinear(settings.FlankLength),
		angularDistance: regression.NewTSQuadratic(settings.FlankLength),
		drag:            regression.NewMovingMedian(settings.DragFactorSmoothing, settings.DragFactor*dragFactorScale),
		recoverySlope:   regression.NewMovingMedian(settings.DragFactorSmoothing, settings.MinimumRecoverySlope),
		recoveryDt:      regression.NewTSLinear(0),
	}
	f.Reset()
	return f
}

// Reset returns the flywheel to its initial state: accumulators zeroed,
// windows cleared, drag factor and recovery slope back to their configured
// defaults, metrics frozen.
func (f *Flywheel) Reset() {
	f.maintainMetrics = false
	f.inRecoveryPhase = false

	f.totalNumberOfImpulses = 0
	f.totalTimeSpinning = 0
	f.currentRawTime = 0
	f.currentCleanTime = 0
	f.currentAngularDistance = 0

	f.currentDt.Reset()
	f.deltaTime.Reset()
	f.angularDistance.Reset()
	f.drag.Reset()
	f.recoverySlope.Reset()
	f.recoveryDt.Reset()

	// The angle series starts at rest at the origin.
	f.angularDistance.Push(0, 0)

	f.velocityAtBeginFlank = 0
	f.accelerationAtBeginFlank = 0
	f.torqueAtBeginFlank = 0
	f.deltaTimeBeforeFlank = 0
	f.velocityBeforeFlank = 0
	f.accelerationBeforeFlank = 0
	f.torqueBeforeFlank = 0
}

// PushValue feeds the time in seconds since the previous impulse.
func (f *Flywheel) PushValue(dt float64) {
	switch {
	case math.IsNaN(dt) || dt < 0:
		opsf("impulse delta %v is not a valid duration, using %.6f", dt, f.currentDt.Clean())
		dt = f.currentDt.Clean()
	case dt > f.settings.MaximumStrokeTimeBeforePause:
		// Typically the first impulse after a pause.
		if diagEnabled() {
			diagf("impulse delta %.3fs exceeds maximum stroke time before pause (%.1fs), using %.6f",
				dt, f.settings.MaximumStrokeTimeBeforePause, f.currentDt.Clean())
		}
		dt = f.currentDt.Clean()
	case dt > f.settings.MaximumTimeBetweenImpulses && f.maintainMetrics:
		if diagEnabled() {
			diagf("impulse delta %.6fs above maximum time between impulses (%.6fs)", dt, f.settings.MaximumTimeBetweenImpulses)
		}
	case dt < f.settings.MinimumTimeBetweenImpulses:
		if diagEnabled() {
			diagf("impulse delta %.6fs below minimum time between impulses (%.6fs)", dt, f.settings.MinimumTimeBetweenImpulses)
		}
	}

	f.currentDt.Push(dt)

	if f.maintainMetrics && f.deltaTime.Length() >= f.flankLength {
		// The oldest sample is about to leave the flank. Once the flank is
		// full it belongs to exactly one phase, so it is safe to account and
		// to feed into the drag calibration.
		f.totalNumberOfImpulses++
		f.deltaTimeBeforeFlank = f.deltaTime.YAtSeriesBegin()
		f.totalTimeSpinning += f.deltaTimeBeforeFlank
		f.velocityBeforeFlank = f.velocityAtBeginFlank
		f.accelerationBeforeFlank = f.accelerationAtBeginFlank
		f.torqueBeforeFlank = f.torqueAtBeginFlank

		if f.inRecoveryPhase {
			f.recoveryDt.Push(f.totalTimeSpinning, f.deltaTimeBeforeFlank)
		}
	} else if f.deltaTime.Length() < f.flankLength {
		f.deltaTimeBeforeFlank = 0
		f.velocityBeforeFlank = 0
		f.accelerationBeforeFlank = 0
		f.torqueBeforeFlank = 0
	}
	// Otherwise metrics are paused and the exposed kinematics hold their
	// last values.

	// The delta-time trend uses the raw deltas: smoothing them would hide
	// exactly the noise the goodness of fit is meant to reject.
	f.currentRawTime += f.currentDt.Raw()
	f.currentAngularDistance += f.anglePerImpulse
	f.deltaTime.Push(f.currentRawTime, f.currentDt.Raw())

	f.currentCleanTime += f.currentDt.Clean()
	f.angularDistance.Push(f.currentCleanTime, f.currentAngularDistance)

	f.velocityAtBeginFlank = f.angularDistance.FirstDerivativeAtPosition(0)
	f.accelerationAtBeginFlank = f.angularDistance.SecondDerivativeAtPosition(0)
	f.torqueAtBeginFlank = f.settings.FlywheelInertia*f.accelerationAtBeginFlank +
		f.drag.Clean()*f.velocityAtBeginFlank*f.velocityAtBeginFlank

	if traceEnabled() {
		tracef("dt=%.6f ω=%.3f α=%.3f τ=%.4f slope=%.6f r2=%.3f",
			dt, f.velocityAtBeginFlank, f.accelerationAtBeginFlank, f.torqueAtBeginFlank,
			f.deltaTime.Slope(), f.deltaTime.GoodnessOfFit())
	}
}

// MaintainStateAndMetrics resumes accumulation of spinning time, angular
// position and the exposed kinematics.
func (f *Flywheel) MaintainStateAndMetrics() { f.maintainMetrics = true }

// MaintainStateOnly freezes the accumulators and holds the exposed
// kinematics at their last values. The windows keep receiving samples so
// that resumed rowing can still be detected.
func (f *Flywheel) MaintainStateOnly() { f.maintainMetrics = false }

// MarkRecoveryPhaseStart starts collecting samples for drag calibration.
func (f *Flywheel) MarkRecoveryPhaseStart() {
	f.inRecoveryPhase = true
	f.recoveryDt.Reset()
}

// MarkRecoveryPhaseCompleted ends the recovery and, when enabled, folds a
// credible drag estimate from it into the running drag factor.
func (f *Flywheel) MarkRecoveryPhaseCompleted() {
	f.inRecoveryPhase = false
	if !f.settings.AutoAdjustDragFactor {
		return
	}

	samples := f.recoveryDt.Length()
	slope := f.recoveryDt.Slope()
	quality := f.recoveryDt.GoodnessOfFit()
	switch {
	case samples <= f.minimumDragSamples:
		diagf("drag estimate rejected: %d samples, need more than %d", samples, f.minimumDragSamples)
		return
	case slope <= 0:
		diagf("drag estimate rejected: recovery slope %.6f is not positive", slope)
		return
	case quality < f.settings.MinimumDragQuality:
		diagf("drag estimate rejected: goodness of fit %.3f below %.3f (slope %.6f, %d samples)",
			quality, f.settings.MinimumDragQuality, slope, samples)
		return
	}

	estimate := f.slopeToDragFactor(slope)
	f.drag.Push(estimate)
	diagf("drag estimate accepted: %.1f (smoothed %.1f, goodness of fit %.3f, %d samples)",
		estimate/dragFactorScale, f.drag.Clean()/dragFactorScale, quality, samples)

	if f.settings.AutoAdjustRecoverySlope {
		f.recoverySlope.Push((1 - f.settings.AutoAdjustRecoverySlopeMargin) * slope)
		diagf("recovery slope threshold now %.6f", f.recoverySlope.Clean())
	}
}

// Under drag only, I·dω/dt = −k·ω², so d(θ/ω)/dt = θ·k/I.
func (f *Flywheel) slopeToDragFactor(slope float64) float64 {
	return slope * f.settings.FlywheelInertia / f.anglePerImpulse
}

// DeltaTime returns the impulse delta that most recently left the flank.
func (f *Flywheel) DeltaTime() float64 { return f.deltaTimeBeforeFlank }

// SpinningTime returns the accumulated rowing time in seconds.
func (f *Flywheel) SpinningTime() float64 { return f.totalTimeSpinning }

// AngularPosition returns the accumulated rotation in radians.
func (f *Flywheel) AngularPosition() float64 {
	return float64(f.totalNumberOfImpulses) * f.anglePerImpulse
}

// AngularVelocity returns ω in rad/s.
func (f *Flywheel) AngularVelocity() float64 { return f.velocityBeforeFlank }

// AngularAcceleration returns α in rad/s².
func (f *Flywheel) AngularAcceleration() float64 { return f.accelerationBeforeFlank }

// Torque returns I·α + k·ω² in N·m.
func (f *Flywheel) Torque() float64 { return f.torqueBeforeFlank }

// DragFactor returns the current drag factor k in SI units (N·m·s²).
func (f *Flywheel) DragFactor() float64 { return f.drag.Clean() }

// DragFactorIsReliable reports whether the drag factor has been calibrated
// since the last Reset. A fixed drag factor is always reliable.
func (f *Flywheel) DragFactorIsReliable() bool {
	if !f.settings.AutoAdjustDragFactor {
		return true
	}
	return f.drag.Reliable()
}

// RecoverySlope returns the delta-time slope separating drive from recovery.
func (f *Flywheel) RecoverySlope() float64 { return f.recoverySlope.Clean() }

func (f *Flywheel) flankFull() bool { return f.deltaTime.Length() >= f.flankLength }

// IsAboveMinimumSpeed reports whether the flywheel turns fast enough for
// impulses to be at most maximumTimeBetweenImpulses apart.
func (f *Flywheel) IsAboveMinimumSpeed() bool {
	return f.flankFull() && f.velocityAtBeginFlank >= f.minimumAngularVelocity
}

// IsPowered reports whether the flywheel is being driven.
func (f *Flywheel) IsPowered() bool {
	return f.flankFull() &&
		f.deltaTime.Slope() < f.recoverySlope.Clean() &&
		f.torqueAtBeginFlank >= f.minimumTorque
}

// IsUnpowered reports whether the flywheel is decaying under drag alone.
func (f *Flywheel) IsUnpowered() bool {
	return f.flankFull() &&
		f.deltaTime.Slope() >= f.recoverySlope.Clean() &&
		f.deltaTime.GoodnessOfFit() >= f.settings.MinimumStrokeQuality &&
		f.torqueAtBeginFlank < f.minimumTorque
}

// IsDwelling reports whether the flywheel is slowing below rowing speed.
func (f *Flywheel) IsDwelling() bool {
	return f.flankFull() &&
		f.velocityAtBeginFlank < f.minimumAngularVelocity &&
		f.deltaTime.Slope() >= f.recoverySlope.Clean() &&
		f.deltaTime.GoodnessOfFit() >= f.settings.MinimumStrokeQuality
}

// State returns a value copy of the query surface.
func (f *Flywheel) State() State {
	return State{
		DeltaTime:           f.DeltaTime(),
		SpinningTime:        f.SpinningTime(),
		AngularPosition:     f.AngularPosition(),
		AngularVelocity:     f.AngularVelocity(),
		AngularAcceleration: f.AngularAcceleration(),
		Torque:              f.Torque(),
		DragFactor:          f.DragFactor(),
		Dwelling:            f.IsDwelling(),
		Unpowered:           f.IsUnpowered(),
		Powered:             f.IsPowered(),
		AboveMinimumSpeed:   f.IsAboveMinimumSpeed(),
	}
}
