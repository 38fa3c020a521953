package regression

// TSLinear is a Theil–Sen line y = slope·x + intercept: the slope is the
// median of all pairwise slopes in the window and the intercept the median of
// y − slope·x. Pairs with coincident x are excluded.
//
// The line is fitted lazily on the first query after a Push, so an unbounded
// series that is only read once (a whole recovery phase) costs a single fit.
type TSLinear struct {
	points series

	// scratch, reused across pushes
	xs     []float64
	ys     []float64
	pairs  []float64
	inters []float64

	slope     float64
	intercept float64 // window-local
	origin    float64
	fitted    bool

	fit      float64
	fitValid bool
}

// NewTSLinear returns a robust line estimator over at most maxSeriesLength
// points. A maxSeriesLength of 0 keeps every point.
func NewTSLinear(maxSeriesLength int) *TSLinear {
	l := &TSLinear{points: newSeries(maxSeriesLength)}
	if maxSeriesLength > 0 {
		l.xs = make([]float64, maxSeriesLength)
		l.ys = make([]float64, maxSeriesLength)
		l.pairs = make([]float64, maxSeriesLength*(maxSeriesLength-1)/2)
		l.inters = make([]float64, maxSeriesLength)
	}
	return l
}

// Push adds a point, evicting the oldest one when the window is full.
func (l *TSLinear) Push(x, y float64) {
	l.points.push(x, y)
	l.fitted = false
	l.fitValid = false
}

func (l *TSLinear) refit() {
	if l.fitted {
		return
	}
	l.fitted = true

	n := l.points.len()
	l.origin = l.points.origin()
	l.xs = growTo(l.xs, n)
	l.ys = growTo(l.ys, n)
	for i := 0; i < n; i++ {
		l.xs[i] = l.points.x(i) - l.origin
		l.ys[i] = l.points.y(i)
	}

	var skipped int
	l.slope, l.intercept, skipped = l.fitLocal(l.xs, l.ys)
	if skipped > 0 && diagEnabled() {
		diagf("ts-linear: excluded %d pair(s) with coincident x out of %d points", skipped, n)
	}
}

// fitLocal runs the pairwise median fit over contiguous, window-local data.
// It returns the number of degenerate pairs that were excluded.
func (l *TSLinear) fitLocal(xs, ys []float64) (slope, intercept float64, skipped int) {
	n := len(xs)
	switch n {
	case 0:
		return 0, 0, 0
	case 1:
		return 0, ys[0], 0
	}

	l.pairs = growTo(l.pairs, n*(n-1)/2)
	k := 0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			dx := xs[j] - xs[i]
			if dx == 0 {
				skipped++
				continue
			}
			l.pairs[k] = (ys[j] - ys[i]) / dx
			k++
		}
	}
	slope = median(l.pairs[:k])

	l.inters = growTo(l.inters, n)
	for i := 0; i < n; i++ {
		l.inters[i] = ys[i] - slope*xs[i]
	}
	intercept = median(l.inters[:n])
	return slope, intercept, skipped
}

// Slope returns the fitted slope; 0 with fewer than two points.
func (l *TSLinear) Slope() float64 {
	l.refit()
	return l.slope
}

// Intercept returns the fitted intercept in caller coordinates.
func (l *TSLinear) Intercept() float64 {
	l.refit()
	return l.intercept - l.slope*l.origin
}

// ProjectX evaluates the fitted line at x.
func (l *TSLinear) ProjectX(x float64) float64 {
	l.refit()
	return l.slope*(x-l.origin) + l.intercept
}

// Length returns the number of retained points.
func (l *TSLinear) Length() int { return l.points.len() }

// GoodnessOfFit returns R² of the fit over the retained points, in [0, 1].
func (l *TSLinear) GoodnessOfFit() float64 {
	if l.fitValid {
		return l.fit
	}
	l.refit()
	n := l.points.len()
	l.fit = 0
	if n >= 2 {
		mean := l.points.meanY()
		var sse, sst float64
		for i := 0; i < n; i++ {
			y := l.points.y(i)
			r := y - l.ProjectX(l.points.x(i))
			sse += r * r
			sst += (y - mean) * (y - mean)
		}
		l.fit = goodness(sse, sst)
	}
	l.fitValid = true
	return l.fit
}

// Reset clears all points and coefficients.
func (l *TSLinear) Reset() {
	l.points.reset()
	l.slope = 0
	l.intercept = 0
	l.origin = 0
	l.fitted = true
	l.fit = 0
	l.fitValid = false
}
