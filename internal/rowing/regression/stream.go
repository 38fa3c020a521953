package regression

// MovingMedian is a stream filter returning the median of the last
// windowSize pushed values. The window starts filled with a default value,
// so early pushes are blended with it rather than replacing it outright.
type MovingMedian struct {
	window       []float64
	scratch      []float64
	position     int
	pushes       int
	defaultValue float64
	raw          float64
	clean        float64
}

// NewMovingMedian returns a filter over windowSize values seeded with
// defaultValue. A windowSize below 1 passes values through unfiltered.
func NewMovingMedian(windowSize int, defaultValue float64) *MovingMedian {
	if windowSize < 1 {
		windowSize = 1
	}
	m := &MovingMedian{
		window:       make([]float64, windowSize),
		scratch:      make([]float64, windowSize),
		defaultValue: defaultValue,
	}
	m.Reset()
	return m
}

// Push adds a value and recomputes the median.
func (m *MovingMedian) Push(v float64) {
	m.raw = v
	m.window[m.position] = v
	m.position = (m.position + 1) % len(m.window)
	m.pushes++
	copy(m.scratch, m.window)
	m.clean = median(m.scratch)
}

// Raw returns the last pushed value, or the default before any push.
func (m *MovingMedian) Raw() float64 { return m.raw }

// Clean returns the current median.
func (m *MovingMedian) Clean() float64 { return m.clean }

// Pushes returns the number of values pushed since the last Reset.
func (m *MovingMedian) Pushes() int { return m.pushes }

// Reliable reports whether at least one real value has been pushed.
func (m *MovingMedian) Reliable() bool { return m.pushes > 0 }

// Reset refills the window with the default value.
func (m *MovingMedian) Reset() {
	for i := range m.window {
		m.window[i] = m.defaultValue
	}
	m.position = 0
	m.pushes = 0
	m.raw = m.defaultValue
	m.clean = m.defaultValue
}
