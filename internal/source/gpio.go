package source

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/banshee-data/rowing.report/internal/timeutil"
)

// EdgeWaiter is the part of gpio.PinIn the GPIO source needs.
type EdgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
}

// edgePoll bounds how long the GPIO loop waits before checking ctx again.
const edgePoll = 100 * time.Millisecond

// GPIO times falling edges of a reed or hall sensor on a GPIO pin.
type GPIO struct {
	counters
	pin      EdgeWaiter
	clock    timeutil.Clock
	debounce time.Duration
	poll     time.Duration
}

// OpenGPIO initialises the host drivers and configures the named pin
// (for example "GPIO17") as a pulled-up input interrupting on falling edges.
// Edges closer than debounce to the previous accepted edge are contact
// bounce and are ignored.
func OpenGPIO(name string, debounce time.Duration) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	if err := p.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return nil, fmt.Errorf("configure %s for edge detection: %w", name, err)
	}
	diagf("listening for falling edges on %s, debounce %v", p, debounce)
	return NewGPIO(p, timeutil.RealClock{}, debounce), nil
}

// NewGPIO returns a GPIO source reading an already configured pin.
func NewGPIO(pin EdgeWaiter, clock timeutil.Clock, debounce time.Duration) *GPIO {
	return &GPIO{pin: pin, clock: clock, debounce: debounce, poll: edgePoll}
}

// Run delivers one delta per accepted edge. The first edge only starts the
// clock.
func (g *GPIO) Run(ctx context.Context, out chan<- float64) error {
	var last time.Time
	for ctx.Err() == nil {
		if !g.pin.WaitForEdge(g.poll) {
			continue
		}
		now := g.clock.Now()
		if last.IsZero() {
			last = now
			continue
		}
		dt := now.Sub(last)
		if dt < g.debounce {
			g.rejected.Add(1)
			if traceEnabled() {
				tracef("bounce after %v ignored", dt)
			}
			continue
		}
		last = now
		g.offer(out, dt.Seconds())
	}
	return ctx.Err()
}
