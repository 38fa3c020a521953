package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/rowing.report/internal/config"
	"github.com/banshee-data/rowing.report/internal/rowing/rower"
	"github.com/banshee-data/rowing.report/internal/timeutil"
)

// DefaultSinkQueue is the number of updates a sink may fall behind.
const DefaultSinkQueue = 64

// Options configure a Runner. Zero values take defaults.
type Options struct {
	ImpulseBuffer   int           // default 256
	PublishInterval time.Duration // default 1s
	StallTimeout    time.Duration // default 6s
	SinkQueue       int           // default DefaultSinkQueue
	Clock           timeutil.Clock
}

func (o Options) withDefaults() Options {
	if o.ImpulseBuffer <= 0 {
		o.ImpulseBuffer = 256
	}
	if o.PublishInterval <= 0 {
		o.PublishInterval = time.Second
	}
	if o.StallTimeout <= 0 {
		o.StallTimeout = 6 * time.Second
	}
	if o.SinkQueue <= 0 {
		o.SinkQueue = DefaultSinkQueue
	}
	if o.Clock == nil {
		o.Clock = timeutil.RealClock{}
	}
	return o
}

// Stats are the runner's counters.
type Stats struct {
	Impulses            uint64            `json:"impulses"`
	InvariantViolations uint64            `json:"invariant_violations"`
	Stalls              uint64            `json:"stalls"`
	Published           uint64            `json:"published"`
	SinkDrops           map[string]uint64 `json:"sink_drops"`
}

// Runner owns a Rower. Only the Run goroutine advances it; readers take
// the mutex for a consistent view.
type Runner struct {
	opts     Options
	impulses chan float64
	controls chan Command

	mu          sync.RWMutex
	rower       *rower.Rower
	lastImpulse time.Time

	sinks []*sinkWorker

	impulseCount atomic.Uint64
	violations   atomic.Uint64
	stalls       atomic.Uint64
	published    atomic.Uint64
}

// NewRunner wraps r. Add sinks before calling Run.
func NewRunner(r *rower.Rower, opts Options) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		opts:     opts,
		rower:    r,
		impulses: make(chan float64, opts.ImpulseBuffer),
		controls: make(chan Command),
	}
}

// Impulses is the channel sources deliver deltas on.
func (r *Runner) Impulses() chan<- float64 { return r.impulses }

// AddSink registers s. It must be called before Run.
func (r *Runner) AddSink(s Sink) {
	r.sinks = append(r.sinks, newSinkWorker(s, r.opts.SinkQueue))
}

// Control hands cmd to the Run loop and waits until it is accepted.
func (r *Runner) Control(ctx context.Context, cmd Command) error {
	select {
	case r.controls <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the engine's current query surface.
func (r *Runner) Snapshot() rower.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rower.Snapshot()
}

// Curves returns the handle curves of the last credible drive.
func (r *Runner) Curves() (rower.Curves, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rower.Curves()
}

// Settings returns the engine's machine settings.
func (r *Runner) Settings() config.RowerSettings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rower.Settings()
}

// Stats returns the runner's counters.
func (r *Runner) Stats() Stats {
	s := Stats{
		Impulses:            r.impulseCount.Load(),
		InvariantViolations: r.violations.Load(),
		Stalls:              r.stalls.Load(),
		Published:           r.published.Load(),
		SinkDrops:           make(map[string]uint64, len(r.sinks)),
	}
	for _, w := range r.sinks {
		s.SinkDrops[w.sink.Name()] = w.dropped.Load()
	}
	return s
}

// Run processes impulses and commands until ctx is done, then drains and
// closes the sinks.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, w := range r.sinks {
		wg.Add(1)
		go func(w *sinkWorker) {
			defer wg.Done()
			w.run()
		}(w)
	}
	defer func() {
		for _, w := range r.sinks {
			w.stop()
		}
		wg.Wait()
	}()

	publish := r.opts.Clock.NewTicker(r.opts.PublishInterval)
	defer publish.Stop()
	watchdog := r.opts.Clock.NewTicker(r.watchdogPeriod())
	defer watchdog.Stop()

	r.mu.Lock()
	r.lastImpulse = r.opts.Clock.Now()
	r.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			r.mu.RLock()
			diagf("stopping: %v", r.rower)
			r.mu.RUnlock()
			return ctx.Err()

		case dt := <-r.impulses:
			r.handleImpulse(dt)

		case cmd := <-r.controls:
			r.handleControl(cmd)

		case <-publish.C():
			r.publish(EventTick, "")

		case <-watchdog.C():
			r.checkStall()
		}
	}
}

func (r *Runner) watchdogPeriod() time.Duration {
	p := r.opts.StallTimeout / 4
	if p < 10*time.Millisecond {
		p = 10 * time.Millisecond
	}
	return p
}

func (r *Runner) handleImpulse(dt float64) {
	r.impulseCount.Add(1)

	r.mu.Lock()
	r.lastImpulse = r.opts.Clock.Now()
	err := r.rower.HandleRotationImpulse(dt)
	snap := r.rower.Snapshot()
	var curves *rower.Curves
	if snap.StrokeCompleted {
		if c, ok := r.rower.Curves(); ok {
			curves = &c
		}
	}
	r.mu.Unlock()

	if err != nil {
		if errors.Is(err, rower.ErrInvariantViolation) {
			r.violations.Add(1)
		}
		opsf("impulse %.6fs: %v", dt, err)
		return
	}

	switch {
	case snap.StrokeCompleted:
		r.dispatch(Update{Event: EventStrokeCompleted, Time: r.opts.Clock.Now(), Snapshot: snap, Curves: curves})
	case snap.StateChanged:
		r.dispatch(Update{Event: EventStateChanged, Time: r.opts.Clock.Now(), Snapshot: snap})
	}
}

func (r *Runner) handleControl(cmd Command) {
	r.mu.Lock()
	switch cmd {
	case Start:
		r.rower.AllowMovement()
	case Pause:
		r.rower.PauseMoving()
	case Stop:
		r.rower.StopMoving()
	case Reset:
		r.rower.Reset()
	}
	r.lastImpulse = r.opts.Clock.Now()
	r.mu.Unlock()

	diagf("control %v", cmd)
	r.publish(EventControl, cmd.String())
}

// checkStall pauses a session whose impulses stopped mid-stroke. The engine
// only notices slow impulses, not absent ones.
func (r *Runner) checkStall() {
	r.mu.Lock()
	state := r.rower.StrokeState()
	idle := r.opts.Clock.Since(r.lastImpulse)
	stalled := (state == rower.Drive || state == rower.Recovery) && idle >= r.opts.StallTimeout
	if stalled {
		r.rower.PauseMoving()
	}
	r.mu.Unlock()

	if stalled {
		r.stalls.Add(1)
		diagf("no impulse for %v in %v, pausing", idle, state)
		r.publish(EventStall, "")
	}
}

func (r *Runner) publish(ev Event, command string) {
	r.dispatch(Update{Event: ev, Command: command, Time: r.opts.Clock.Now(), Snapshot: r.Snapshot()})
}

func (r *Runner) dispatch(u Update) {
	r.published.Add(1)
	if traceEnabled() {
		tracef("%s: %v strokes=%d distance=%.1f", u.Event, u.State, u.TotalNumberOfStrokes, u.TotalLinearDistanceSinceStart)
	}
	for _, w := range r.sinks {
		w.offer(u)
	}
}
