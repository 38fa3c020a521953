// Package simulate produces impulse traces of an air rower by integrating
// the flywheel equation of motion
//
//	I·dω/dt = τ_handle(t) − k·ω²
//
// and emitting an impulse every time the flywheel passes one of its magnets.
// Traces drive the end-to-end tests and the trace generator tool.
package simulate

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Machine is the physical flywheel being simulated.
type Machine struct {
	Inertia               float64 // kg·m²
	DragFactor            float64 // SI, N·m·s²
	ImpulsesPerRevolution int
}

// Stroke is one drive with a half-sine handle torque followed by a
// recovery without torque.
type Stroke struct {
	DriveDuration    float64 // s
	RecoveryDuration float64 // s
	PeakTorque       float64 // N·m at the flywheel
}

// Config describes a session.
type Config struct {
	Machine
	InitialVelocity float64 // rad/s
	Strokes         []Stroke

	// Step is the integration step in seconds; 0 means 1e-5.
	Step float64
	// Jitter is the standard deviation in seconds of Gaussian noise added to
	// each impulse delta; 0 disables it.
	Jitter float64
	Seed   uint64
}

// Trace is a simulated session.
type Trace struct {
	Deltas       []float64 // seconds between impulses
	Duration     float64   // s, time of the last impulse
	TotalAngle   float64   // rad, covered by the emitted impulses
	StrokeStarts []float64 // s, start of every drive
	PeakVelocity float64   // rad/s
	MinVelocity  float64   // rad/s, after the first impulse
}

// Strokes repeats one stroke n times.
func Strokes(n int, s Stroke) []Stroke {
	out := make([]Stroke, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// ErrInvalidConfig is wrapped by Run for unusable configurations.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Run integrates the session and returns its impulse trace.
func Run(cfg Config) (Trace, error) {
	switch {
	case cfg.Inertia <= 0:
		return Trace{}, fmt.Errorf("%w: inertia must be positive", ErrInvalidConfig)
	case cfg.DragFactor < 0:
		return Trace{}, fmt.Errorf("%w: drag factor must be non-negative", ErrInvalidConfig)
	case cfg.ImpulsesPerRevolution < 1:
		return Trace{}, fmt.Errorf("%w: need at least one impulse per revolution", ErrInvalidConfig)
	case cfg.InitialVelocity <= 0:
		return Trace{}, fmt.Errorf("%w: the flywheel must already be turning", ErrInvalidConfig)
	}

	h := cfg.Step
	if h <= 0 {
		h = 1e-5
	}
	theta := 2 * math.Pi / float64(cfg.ImpulsesPerRevolution)

	var noise *distuv.Normal
	if cfg.Jitter > 0 {
		noise = &distuv.Normal{Mu: 0, Sigma: cfg.Jitter, Src: rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)}
	}

	tr := Trace{MinVelocity: math.Inf(1)}
	omega := cfg.InitialVelocity
	angle := 0.0
	t := 0.0
	lastImpulse := 0.0
	next := theta

	accel := func(tau, w float64) float64 { return (tau - cfg.DragFactor*w*w) / cfg.Inertia }

	strokeStart := 0.0
	for _, s := range cfg.Strokes {
		tr.StrokeStarts = append(tr.StrokeStarts, strokeStart)
		end := strokeStart + s.DriveDuration + s.RecoveryDuration
		torque := func(at float64) float64 {
			u := at - strokeStart
			if u < 0 || u >= s.DriveDuration {
				return 0
			}
			return s.PeakTorque * math.Sin(math.Pi*u/s.DriveDuration)
		}

		for t < end {
			step := math.Min(h, end-t)

			// Classic RK4 on (angle, ω).
			k1w := accel(torque(t), omega)
			k1a := omega
			k2w := accel(torque(t+step/2), omega+step/2*k1w)
			k2a := omega + step/2*k1w
			k3w := accel(torque(t+step/2), omega+step/2*k2w)
			k3a := omega + step/2*k2w
			k4w := accel(torque(t+step), omega+step*k3w)
			k4a := omega + step*k3w

			newOmega := omega + step/6*(k1w+2*k2w+2*k3w+k4w)
			newAngle := angle + step/6*(k1a+2*k2a+2*k3a+k4a)

			for newAngle >= next {
				at := t + step*(next-angle)/(newAngle-angle)
				dt := at - lastImpulse
				if noise != nil {
					dt = math.Max(dt+noise.Rand(), 0)
				}
				tr.Deltas = append(tr.Deltas, dt)
				lastImpulse = at
				next += theta
			}

			omega, angle, t = newOmega, newAngle, t+step
			tr.PeakVelocity = math.Max(tr.PeakVelocity, omega)
			if len(tr.Deltas) > 0 {
				tr.MinVelocity = math.Min(tr.MinVelocity, omega)
			}
		}
		strokeStart = end
	}

	tr.Duration = lastImpulse
	tr.TotalAngle = float64(len(tr.Deltas)) * theta
	if math.IsInf(tr.MinVelocity, 1) {
		tr.MinVelocity = 0
	}
	return tr, nil
}

// Elapsed returns the sum of the impulse deltas, which differs from Duration
// only by the jitter.
func (tr Trace) Elapsed() float64 { return floats.Sum(tr.Deltas) }

// DistanceFor returns the distance in meters the trace is worth for a rower
// with the given drag factor and magic constant.
func (tr Trace) DistanceFor(dragFactor, magicConstant float64) float64 {
	return math.Cbrt(dragFactor/magicConstant) * tr.TotalAngle
}
