package source

import (
	"context"
	"errors"

	"github.com/banshee-data/rowing.report/internal/serialmux"
)

// Serial reads deltas printed by an impulse counter microcontroller. The
// mux's Monitor loop must be running for lines to arrive.
type Serial struct {
	counters
	mux serialmux.SerialMuxInterface
}

// NewSerial subscribes to mux when Run starts.
func NewSerial(mux serialmux.SerialMuxInterface) *Serial {
	return &Serial{mux: mux}
}

// Run delivers one delta per impulse line until ctx is done or the mux
// closes.
func (s *Serial) Run(ctx context.Context, out chan<- float64) error {
	id, lines := s.mux.Subscribe()
	defer s.mux.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			dt, err := serialmux.ParseImpulseLine(line)
			switch {
			case errors.Is(err, serialmux.ErrNotAnImpulse):
				if line != "" {
					diagf("counter: %s", line)
				}
			case err != nil:
				s.rejected.Add(1)
				opsf("%v", err)
			default:
				s.offer(out, dt)
			}
		}
	}
}
