// Package source delivers impulse deltas, in seconds, from the flywheel
// sensor to the session runner. Live sources never block on a slow consumer:
// when the channel is full the newest delta is dropped and counted.
package source

import (
	"context"
	"sync/atomic"
)

// Source produces impulse deltas until ctx is done or its input ends.
type Source interface {
	Run(ctx context.Context, out chan<- float64) error
	Stats() Stats
}

// Stats counts what a source saw.
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`  // channel full
	Rejected  uint64 `json:"rejected"` // bounces and unparsable input
}

type counters struct {
	delivered atomic.Uint64
	dropped   atomic.Uint64
	rejected  atomic.Uint64
}

func (c *counters) Stats() Stats {
	return Stats{
		Delivered: c.delivered.Load(),
		Dropped:   c.dropped.Load(),
		Rejected:  c.rejected.Load(),
	}
}

// offer delivers dt without blocking.
func (c *counters) offer(out chan<- float64, dt float64) {
	select {
	case out <- dt:
		c.delivered.Add(1)
		if traceEnabled() {
			tracef("impulse %.6fs", dt)
		}
	default:
		if n := c.dropped.Add(1); n == 1 || n%100 == 0 {
			opsf("impulse channel full, %d deltas dropped so far", n)
		}
	}
}

// send delivers dt, waiting for the consumer.
func (c *counters) send(ctx context.Context, out chan<- float64, dt float64) error {
	select {
	case out <- dt:
		c.delivered.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
