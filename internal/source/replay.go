package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/rowing.report/internal/serialmux"
	"github.com/banshee-data/rowing.report/internal/timeutil"
)

// maxTraceLine bounds a single trace file line.
const maxTraceLine = 4096

// ReadTrace parses a recorded trace: one delta per line in the impulse
// counter's format (seconds, or microseconds with a "us" suffix). Blank
// lines and lines starting with '#' are skipped.
func ReadTrace(r io.Reader) ([]float64, error) {
	var deltas []float64
	scan := bufio.NewScanner(r)
	scan.Buffer(make([]byte, 0, maxTraceLine), maxTraceLine)
	for n := 1; scan.Scan(); n++ {
		dt, err := serialmux.ParseImpulseLine(scan.Text())
		if errors.Is(err, serialmux.ErrNotAnImpulse) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		deltas = append(deltas, dt)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return deltas, nil
}

// WriteTrace writes deltas in the format ReadTrace reads, preceded by the
// header lines as comments.
func WriteTrace(w io.Writer, deltas []float64, header ...string) error {
	bw := bufio.NewWriter(w)
	for _, h := range header {
		for _, line := range strings.Split(h, "\n") {
			fmt.Fprintf(bw, "# %s\n", line)
		}
	}
	for _, dt := range deltas {
		fmt.Fprintf(bw, "%.9f\n", dt)
	}
	return bw.Flush()
}

// Replay plays back a recorded trace.
type Replay struct {
	counters
	deltas   []float64
	clock    timeutil.Clock
	realtime bool
}

// OpenReplay reads the trace at path.
func OpenReplay(path string, realtime bool) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	deltas, err := ReadTrace(f)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	diagf("loaded %d impulses from %s", len(deltas), path)
	return NewReplay(deltas, timeutil.RealClock{}, realtime), nil
}

// NewReplay plays deltas. With realtime set each delta is delivered after
// sleeping for it on clock; otherwise as fast as the consumer takes them.
func NewReplay(deltas []float64, clock timeutil.Clock, realtime bool) *Replay {
	return &Replay{deltas: deltas, clock: clock, realtime: realtime}
}

// Len returns the number of impulses in the trace.
func (r *Replay) Len() int { return len(r.deltas) }

// Run delivers every delta and returns nil at the end of the trace. Replay
// waits for the consumer rather than dropping.
func (r *Replay) Run(ctx context.Context, out chan<- float64) error {
	for _, dt := range r.deltas {
		if r.realtime {
			r.clock.Sleep(time.Duration(dt * float64(time.Second)))
		}
		if err := r.send(ctx, out, dt); err != nil {
			return err
		}
	}
	return nil
}
