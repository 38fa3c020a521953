package regression

import "gonum.org/v1/gonum/stat"

// OLSLinear is an ordinary least squares line over a bounded window. The
// flywheel uses it for the trend of successive impulse deltas, where every
// sample matters and robustness would only add latency.
type OLSLinear struct {
	points series
	xs     []float64
	ys     []float64

	slope     float64
	intercept float64 // window-local
	origin    float64
	fit       float64
}

// NewOLSLinear returns a least squares line over at most maxSeriesLength
// points. A maxSeriesLength of 0 keeps every point.
func NewOLSLinear(maxSeriesLength int) *OLSLinear {
	o := &OLSLinear{points: newSeries(maxSeriesLength)}
	if maxSeriesLength > 0 {
		o.xs = make([]float64, maxSeriesLength)
		o.ys = make([]float64, maxSeriesLength)
	}
	return o
}

// Push adds a point, evicting the oldest one when the window is full, and
// refits the line.
func (o *OLSLinear) Push(x, y float64) {
	o.points.push(x, y)

	n := o.points.len()
	o.origin = o.points.origin()
	o.xs = growTo(o.xs, n)
	o.ys = growTo(o.ys, n)
	for i := 0; i < n; i++ {
		o.xs[i] = o.points.x(i) - o.origin
		o.ys[i] = o.points.y(i)
	}

	if n < 2 {
		o.slope, o.intercept, o.fit = 0, o.points.meanY(), 0
		return
	}

	if stat.Variance(o.xs, nil) == 0 {
		if diagEnabled() {
			diagf("ols-linear: all %d x values coincide", n)
		}
		o.slope, o.intercept, o.fit = 0, stat.Mean(o.ys, nil), 0
		return
	}

	o.intercept, o.slope = stat.LinearRegression(o.xs, o.ys, nil, false)

	mean := stat.Mean(o.ys, nil)
	var sse, sst float64
	for i := 0; i < n; i++ {
		r := o.ys[i] - (o.slope*o.xs[i] + o.intercept)
		sse += r * r
		sst += (o.ys[i] - mean) * (o.ys[i] - mean)
	}
	o.fit = goodness(sse, sst)
}

// Slope returns the fitted slope; 0 with fewer than two points.
func (o *OLSLinear) Slope() float64 { return o.slope }

// Intercept returns the fitted intercept in caller coordinates.
func (o *OLSLinear) Intercept() float64 { return o.intercept - o.slope*o.origin }

// GoodnessOfFit returns R² of the fit, in [0, 1].
func (o *OLSLinear) GoodnessOfFit() float64 { return o.fit }

// Length returns the number of retained points.
func (o *OLSLinear) Length() int { return o.points.len() }

// YAtSeriesBegin returns the y of the oldest retained point, or 0 when empty.
func (o *OLSLinear) YAtSeriesBegin() float64 {
	if o.points.len() == 0 {
		return 0
	}
	return o.points.y(0)
}

// XAtSeriesBegin returns the x of the oldest retained point, or 0 when empty.
func (o *OLSLinear) XAtSeriesBegin() float64 {
	return o.points.origin()
}

// Reset clears all points and coefficients.
func (o *OLSLinear) Reset() {
	o.points.reset()
	o.slope, o.intercept, o.origin, o.fit = 0, 0, 0, 0
}
