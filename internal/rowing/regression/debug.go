package regression

import (
	"io"
	"log"
	"sync"
)

var (
	mu         sync.RWMutex
	diagLogger *log.Logger
)

// SetLogWriters configures the logging streams for the regression package.
// Only the diag stream is used: degenerate candidates are reported there.
// Pass nil to disable.
func SetLogWriters(diag io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if diag == nil {
		diagLogger = nil
		return
	}
	diagLogger = log.New(diag, "[regression] ", log.LstdFlags|log.Lmicroseconds)
}

// diagf logs to the diag stream (numerical degeneracy, tuning context).
func diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

// diagEnabled reports whether the diag stream is on, so Push can skip
// boxing arguments when it is not.
func diagEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return diagLogger != nil
}
