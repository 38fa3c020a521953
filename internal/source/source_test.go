package source

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/rowing.report/internal/serialmux"
	"github.com/banshee-data/rowing.report/internal/timeutil"
)

// fakePin reports one edge per scripted gap, advancing the mock clock by the
// gap first. Once the script runs out it reports timeouts.
type fakePin struct {
	mu    sync.Mutex
	clock *timeutil.MockClock
	gaps  []time.Duration
}

func (p *fakePin) WaitForEdge(timeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.gaps) == 0 {
		time.Sleep(time.Millisecond)
		return false
	}
	p.clock.Advance(p.gaps[0])
	p.gaps = p.gaps[1:]
	return true
}

// syncBuffer is a bytes.Buffer safe to read while a logger writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func collect(t *testing.T, ch <-chan float64, n int) []float64 {
	t.Helper()
	got := make([]float64, 0, n)
	for len(got) < n {
		select {
		case dt := <-ch:
			got = append(got, dt)
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d of %d deltas", len(got), n)
		}
	}
	return got
}

func TestGPIO_DebouncesEdges(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	pin := &fakePin{clock: clock, gaps: []time.Duration{
		time.Second, // first edge only starts timing
		20 * time.Millisecond,
		200 * time.Microsecond, // bounce
		15 * time.Millisecond,
	}}
	g := NewGPIO(pin, clock, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan float64, 8)
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx, out) }()

	got := collect(t, out, 2)
	// The bounce is measured from the last accepted edge, so the third
	// delta spans both the bounce and the following gap.
	want := []float64{0.020, 0.0152}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("deltas mismatch (-want +got):\n%s", diff)
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, Stats{Delivered: 2, Rejected: 1}, g.Stats())
}

func TestOffer_DropsWhenFull(t *testing.T) {
	var ops bytes.Buffer
	SetLogWriters(&ops, nil, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	var c counters
	out := make(chan float64, 1)
	c.offer(out, 0.01)
	c.offer(out, 0.02)

	assert.Equal(t, Stats{Delivered: 1, Dropped: 1}, c.Stats())
	assert.Equal(t, 0.01, <-out)
	assert.Contains(t, ops.String(), "1 deltas dropped")
}

func TestSerial_ParsesCounterOutput(t *testing.T) {
	var diag syncBuffer
	SetLogWriters(nil, &diag, nil)
	t.Cleanup(func() { SetLogWriters(nil, nil, nil) })

	port := serialmux.NewTestableSerialPort()
	mux := serialmux.NewSerialMux(port)
	s := NewSerial(mux)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mux.Monitor(ctx)

	out := make(chan float64, 8)
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	// Subscription happens inside Run; wait for it before writing.
	require.Eventually(t, func() bool {
		port.AddLines("# ready")
		return strings.Contains(diag.String(), "counter: # ready")
	}, 5*time.Second, 10*time.Millisecond)

	port.AddLines("12000us", "garbage", "0.011")
	got := collect(t, out, 2)
	assert.InDelta(t, 0.012, got[0], 1e-12)
	assert.InDelta(t, 0.011, got[1], 1e-12)

	require.Eventually(t, func() bool { return s.Stats().Rejected == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, mux.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the mux closed")
	}
}

func TestReadTrace(t *testing.T) {
	in := strings.NewReader("# machine: concept2\n\n0.012\n11500us\n")
	got, err := ReadTrace(in)
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{0.012, 0.0115}, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}

	_, err = ReadTrace(strings.NewReader("0.01\nbad\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteTrace_ReadsBack(t *testing.T) {
	deltas := []float64{0.0123456789, 0.011, 0.0105}
	var buf bytes.Buffer
	require.NoError(t, WriteTrace(&buf, deltas, "seed 1\nmachine concept2"))
	assert.True(t, strings.HasPrefix(buf.String(), "# seed 1\n# machine concept2\n"))

	got, err := ReadTrace(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(deltas, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReplay(t *testing.T) {
	deltas := []float64{0.5, 0.25, 0.125}

	t.Run("realtime sleeps each delta", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		r := NewReplay(deltas, clock, true)
		out := make(chan float64, len(deltas))

		require.NoError(t, r.Run(context.Background(), out))

		assert.Equal(t, []time.Duration{500 * time.Millisecond, 250 * time.Millisecond, 125 * time.Millisecond}, clock.Sleeps())
		assert.Equal(t, Stats{Delivered: 3}, r.Stats())
	})

	t.Run("fast waits for the consumer", func(t *testing.T) {
		clock := timeutil.NewMockClock(time.Unix(0, 0))
		r := NewReplay(deltas, clock, false)
		out := make(chan float64)
		done := make(chan error, 1)
		go func() { done <- r.Run(context.Background(), out) }()

		assert.Equal(t, deltas, collect(t, out, 3))
		require.NoError(t, <-done)
		assert.Empty(t, clock.Sleeps())
		assert.Equal(t, 3, r.Len())
	})

	t.Run("cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := NewReplay(deltas, timeutil.NewMockClock(time.Unix(0, 0)), false)
		assert.ErrorIs(t, r.Run(ctx, make(chan float64)), context.Canceled)
	})
}
