package simulate

import "math"

// Accelerate returns n impulse deltas of a flywheel turning from omega0
// under constant angular acceleration alpha, one impulse per theta radians,
// and the velocity at the last impulse.
func Accelerate(theta, omega0, alpha float64, n int) ([]float64, float64) {
	dts := make([]float64, n)
	prev := 0.0
	for i := 1; i <= n; i++ {
		var t float64
		if alpha == 0 {
			t = float64(i) * theta / omega0
		} else {
			t = (-omega0 + math.Sqrt(omega0*omega0+2*alpha*float64(i)*theta)) / alpha
		}
		dts[i-1] = t - prev
		prev = t
	}
	return dts, math.Sqrt(omega0*omega0 + 2*alpha*float64(n)*theta)
}

// Coast returns n impulse deltas of a flywheel slowing from omega0 under
// drag alone, I·dω/dt = −k·ω², and the velocity at the last impulse.
func Coast(theta, omega0, dragFactor, inertia float64, n int) ([]float64, float64) {
	dts := make([]float64, n)
	scale := inertia / (dragFactor * omega0)
	beta := theta * dragFactor / inertia
	prev := 0.0
	for i := 1; i <= n; i++ {
		t := scale * math.Expm1(float64(i)*beta)
		dts[i-1] = t - prev
		prev = t
	}
	return dts, omega0 * math.Exp(-float64(n)*beta)
}
