package regression

// series is a FIFO of (x, y) points. With a positive capacity it is a fixed
// ring buffer and the oldest point is evicted on overflow; with capacity 0 it
// grows without bound.
type series struct {
	xs    []float64
	ys    []float64
	start int
	n     int
	cap   int
}

func newSeries(capacity int) series {
	if capacity < 0 {
		capacity = 0
	}
	s := series{cap: capacity}
	if capacity > 0 {
		s.xs = make([]float64, capacity)
		s.ys = make([]float64, capacity)
	}
	return s
}

// push appends a point and reports whether the oldest point was evicted.
func (s *series) push(x, y float64) bool {
	if s.cap == 0 {
		s.xs = append(s.xs, x)
		s.ys = append(s.ys, y)
		s.n++
		return false
	}
	if s.n < s.cap {
		idx := (s.start + s.n) % s.cap
		s.xs[idx] = x
		s.ys[idx] = y
		s.n++
		return false
	}
	s.xs[s.start] = x
	s.ys[s.start] = y
	s.start = (s.start + 1) % s.cap
	return true
}

func (s *series) index(i int) int {
	if s.cap == 0 {
		return i
	}
	return (s.start + i) % s.cap
}

func (s *series) x(i int) float64 { return s.xs[s.index(i)] }
func (s *series) y(i int) float64 { return s.ys[s.index(i)] }

func (s *series) len() int { return s.n }

func (s *series) reset() {
	s.start = 0
	s.n = 0
	if s.cap == 0 {
		s.xs = s.xs[:0]
		s.ys = s.ys[:0]
	}
}

// origin is the x of the oldest retained point; estimators fit relative to it.
func (s *series) origin() float64 {
	if s.n == 0 {
		return 0
	}
	return s.x(0)
}

func (s *series) meanY() float64 {
	if s.n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < s.n; i++ {
		sum += s.y(i)
	}
	return sum / float64(s.n)
}
