package api

import (
	"io"
	"log"
	"sync"
)

var (
	mu         sync.RWMutex
	opsLogger  *log.Logger
	diagLogger *log.Logger
)

// SetLogWriters configures logging for the api package. Requests are logged
// on diag, handler failures on ops. The package has no trace output.
func SetLogWriters(ops, diag, _ io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	opsLogger = newLogger("[api] ", ops)
	diagLogger = newLogger("[api] ", diag)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

func opsf(format string, args ...interface{}) {
	mu.RLock()
	l := opsLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}

func diagf(format string, args ...interface{}) {
	mu.RLock()
	l := diagLogger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
