package regression

// TSQuadratic fits y = A·x² + B·x + C over a sliding window of points.
//
// A is the median of the closed-form parabola coefficient of every point
// triple in the window. Each push adds the triples that have the new point as
// their last vertex and drops those that had the evicted point as their
// first, so the pool always holds every triple whose three vertices are
// still retained at O(window²) cost per push. B and C are the median-slope
// line through the residuals y − A·x². With fewer than three points every
// coefficient and derivative is 0.
type TSQuadratic struct {
	points series

	// Triple pool: the A estimate of each triple and the sequence number of
	// its oldest vertex.
	pool      []float64
	poolFirst []int
	pushed    int

	// scratch, reused across pushes
	xs       []float64
	ys       []float64
	selected []float64
	residual *TSLinear

	a      float64
	b      float64 // window-local
	c      float64 // window-local
	origin float64

	fit      float64
	fitValid bool
}

// NewTSQuadratic returns a quadratic estimator over at most maxSeriesLength
// points. A maxSeriesLength of 0 keeps every point.
func NewTSQuadratic(maxSeriesLength int) *TSQuadratic {
	q := &TSQuadratic{
		points:   newSeries(maxSeriesLength),
		residual: NewTSLinear(maxSeriesLength),
	}
	if maxSeriesLength > 0 {
		q.xs = make([]float64, maxSeriesLength)
		q.ys = make([]float64, maxSeriesLength)
		size := tripleCount(maxSeriesLength)
		q.pool = make([]float64, 0, size)
		q.poolFirst = make([]int, 0, size)
		q.selected = make([]float64, size)
	}
	return q
}

func tripleCount(n int) int {
	if n < 3 {
		return 0
	}
	return n * (n - 1) * (n - 2) / 6
}

// Push adds a point, evicting the oldest one when the window is full, and
// refits all coefficients.
func (q *TSQuadratic) Push(x, y float64) {
	q.points.push(x, y)
	q.pushed++
	q.fitValid = false

	n := q.points.len()
	if n < 3 {
		q.a, q.b, q.c = 0, 0, 0
		q.origin = q.points.origin()
		return
	}

	q.origin = q.points.origin()
	q.xs = growTo(q.xs, n)
	q.ys = growTo(q.ys, n)
	for i := 0; i < n; i++ {
		q.xs[i] = q.points.x(i) - q.origin
		q.ys[i] = q.points.y(i)
	}

	// Drop the triples whose oldest vertex was evicted.
	oldest := q.pushed - n
	k := 0
	for p := range q.pool {
		if q.poolFirst[p] >= oldest {
			q.pool[k] = q.pool[p]
			q.poolFirst[k] = q.poolFirst[p]
			k++
		}
	}
	q.pool = q.pool[:k]
	q.poolFirst = q.poolFirst[:k]

	// Add the triples closed by the new point. A is translation invariant,
	// so triples computed against an earlier origin stay valid.
	last, skipped := n-1, 0
	for i := 0; i < last-1; i++ {
		for j := i + 1; j < last; j++ {
			a, ok := parabolaA(q.xs[i], q.ys[i], q.xs[j], q.ys[j], q.xs[last], q.ys[last])
			if !ok {
				skipped++
				continue
			}
			q.pool = append(q.pool, a)
			q.poolFirst = append(q.poolFirst, oldest+i)
		}
	}
	if skipped > 0 && diagEnabled() {
		diagf("ts-quadratic: excluded %d degenerate triple(s) ending at the newest point", skipped)
	}

	if len(q.pool) == 0 {
		if diagEnabled() {
			diagf("ts-quadratic: no valid triples in window of %d points", n)
		}
		q.a = 0
	} else {
		q.selected = growTo(q.selected, len(q.pool))
		copy(q.selected, q.pool)
		q.a = median(q.selected)
	}

	// Reuse xs for the residual fit input; ys becomes the residual series.
	for i := 0; i < n; i++ {
		q.ys[i] -= q.a * q.xs[i] * q.xs[i]
	}
	q.b, q.c, skipped = q.residual.fitLocal(q.xs[:n], q.ys[:n])
	if skipped > 0 && diagEnabled() {
		diagf("ts-quadratic: excluded %d residual pair(s) with coincident x", skipped)
	}
}

// parabolaA returns the x² coefficient of the parabola through three points
// using divided differences. It reports false when two x values coincide.
func parabolaA(x1, y1, x2, y2, x3, y3 float64) (float64, bool) {
	if x1 == x2 || x1 == x3 || x2 == x3 {
		return 0, false
	}
	return ((y3-y1)/(x3-x1) - (y2-y1)/(x2-x1)) / (x3 - x2), true
}

// Coefficients returns A, B and C in caller coordinates.
func (q *TSQuadratic) Coefficients() (a, b, c float64) {
	o := q.origin
	return q.a, q.b - 2*q.a*o, q.c - q.b*o + q.a*o*o
}

// A returns the quadratic coefficient.
func (q *TSQuadratic) A() float64 { return q.a }

// B returns the linear coefficient in caller coordinates.
func (q *TSQuadratic) B() float64 {
	_, b, _ := q.Coefficients()
	return b
}

// C returns the constant term in caller coordinates.
func (q *TSQuadratic) C() float64 {
	_, _, c := q.Coefficients()
	return c
}

// Length returns the number of retained points.
func (q *TSQuadratic) Length() int { return q.points.len() }

// XAtPosition returns the x of the retained point at position, 0 being the
// oldest.
func (q *TSQuadratic) XAtPosition(position int) float64 {
	if position < 0 || position >= q.points.len() {
		return 0
	}
	return q.points.x(position)
}

// FirstDerivativeAtPosition returns 2A·x + B at the retained point at
// position. It is 0 before three points exist or for an unknown position.
func (q *TSQuadratic) FirstDerivativeAtPosition(position int) float64 {
	if q.points.len() < 3 || position < 0 || position >= q.points.len() {
		return 0
	}
	return 2*q.a*(q.points.x(position)-q.origin) + q.b
}

// SecondDerivativeAtPosition returns 2A. It is 0 before three points exist
// or for an unknown position.
func (q *TSQuadratic) SecondDerivativeAtPosition(position int) float64 {
	if q.points.len() < 3 || position < 0 || position >= q.points.len() {
		return 0
	}
	return 2 * q.a
}

// ProjectX evaluates the fitted polynomial at x.
func (q *TSQuadratic) ProjectX(x float64) float64 {
	xl := x - q.origin
	return q.a*xl*xl + q.b*xl + q.c
}

// GoodnessOfFit returns R² of the fit over the retained points, in [0, 1].
// It is 0 with fewer than three points.
func (q *TSQuadratic) GoodnessOfFit() float64 {
	if q.fitValid {
		return q.fit
	}
	n := q.points.len()
	q.fit = 0
	if n >= 3 {
		mean := q.points.meanY()
		var sse, sst float64
		for i := 0; i < n; i++ {
			y := q.points.y(i)
			r := y - q.ProjectX(q.points.x(i))
			sse += r * r
			sst += (y - mean) * (y - mean)
		}
		q.fit = goodness(sse, sst)
	}
	q.fitValid = true
	return q.fit
}

// Reset clears all points and coefficients.
func (q *TSQuadratic) Reset() {
	q.points.reset()
	q.residual.Reset()
	q.pool = q.pool[:0]
	q.poolFirst = q.poolFirst[:0]
	q.pushed = 0
	q.a, q.b, q.c = 0, 0, 0
	q.origin = 0
	q.fit = 0
	q.fitValid = false
}
