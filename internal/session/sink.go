package session

import (
	"sync"
	"sync/atomic"
)

// sinkWorker feeds one sink from a bounded queue so a slow sink never holds
// up the engine.
type sinkWorker struct {
	sink    Sink
	queue   chan Update
	dropped atomic.Uint64

	stopOnce sync.Once
}

func newSinkWorker(s Sink, size int) *sinkWorker {
	return &sinkWorker{sink: s, queue: make(chan Update, size)}
}

func (w *sinkWorker) offer(u Update) {
	select {
	case w.queue <- u:
	default:
		if n := w.dropped.Add(1); n == 1 || n%100 == 0 {
			opsf("sink %s is behind, %d updates dropped so far", w.sink.Name(), n)
		}
	}
}

// run consumes until the queue is closed, then closes the sink.
func (w *sinkWorker) run() {
	for u := range w.queue {
		if err := w.sink.Consume(u); err != nil {
			opsf("sink %s: %s update: %v", w.sink.Name(), u.Event, err)
		}
	}
	if err := w.sink.Close(); err != nil {
		opsf("sink %s: close: %v", w.sink.Name(), err)
	}
}

func (w *sinkWorker) stop() {
	w.stopOnce.Do(func() { close(w.queue) })
}

// SinkFunc adapts a function to a Sink with nothing to close.
type SinkFunc struct {
	SinkName string
	Fn       func(Update) error
}

func (f SinkFunc) Name() string           { return f.SinkName }
func (f SinkFunc) Consume(u Update) error { return f.Fn(u) }
func (f SinkFunc) Close() error           { return nil }
