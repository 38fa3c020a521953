package rower

// curveMetrics tracks one handle quantity over a drive: its peak, its
// time-weighted average over positive samples and the sampled curve, where
// non-positive samples are recorded as 0.
type curveMetrics struct {
	curve          []float64
	peak           float64
	weightedValues float64
	weightedTime   float64
}

func newCurveMetrics(capacity int) *curveMetrics {
	return &curveMetrics{curve: make([]float64, 0, capacity)}
}

func (c *curveMetrics) push(dt, v float64) {
	if v <= 0 {
		c.curve = append(c.curve, 0)
		return
	}
	c.curve = append(c.curve, v)
	if v > c.peak {
		c.peak = v
	}
	c.weightedValues += dt * v
	c.weightedTime += dt
}

func (c *curveMetrics) average() float64 {
	if c.weightedTime <= 0 || c.weightedValues <= 0 {
		return 0
	}
	return c.weightedValues / c.weightedTime
}

// values returns a copy of the curve.
func (c *curveMetrics) values() []float64 {
	return append([]float64(nil), c.curve...)
}

func (c *curveMetrics) reset() {
	c.curve = c.curve[:0]
	c.peak = 0
	c.weightedValues = 0
	c.weightedTime = 0
}

// driveCurves groups the force, velocity and power trackers of one drive.
type driveCurves struct {
	force    *curveMetrics
	velocity *curveMetrics
	power    *curveMetrics
}

func newDriveCurves(capacity int) driveCurves {
	return driveCurves{
		force:    newCurveMetrics(capacity),
		velocity: newCurveMetrics(capacity),
		power:    newCurveMetrics(capacity),
	}
}

func (d driveCurves) reset() {
	d.force.reset()
	d.velocity.reset()
	d.power.reset()
}

// Curves are the handle curves of the last completed drive, one sample per
// impulse.
type Curves struct {
	HandleForce    []float64 `json:"handle_force"`    // N
	HandleVelocity []float64 `json:"handle_velocity"` // m/s
	HandlePower    []float64 `json:"handle_power"`    // W
}
