// Package monitoring holds the process-level logger and opens the log
// streams the engine packages write to.
package monitoring

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Streams are the three log streams every engine package accepts through
// SetLogWriters. A nil writer mutes its stream.
type Streams struct {
	Ops   io.Writer // data loss and invariant violations, always on
	Diag  io.Writer // calibration, phase changes, input anomalies
	Trace io.Writer // per-impulse detail

	closers []io.Closer
}

// OpenStreams sends ops to stderr and opens the diag and trace streams.
// A path of "" leaves the stream muted and "-" writes it to stderr.
func OpenStreams(diagPath, tracePath string) (*Streams, error) {
	s := &Streams{Ops: os.Stderr}
	var err error
	if s.Diag, err = s.open(diagPath); err != nil {
		s.Close()
		return nil, err
	}
	if s.Trace, err = s.open(tracePath); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Streams) open(path string) (io.Writer, error) {
	switch path {
	case "":
		return nil, nil
	case "-":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log stream %s: %w", path, err)
	}
	s.closers = append(s.closers, f)
	return f, nil
}

// Apply calls each setter with the three writers.
func (s *Streams) Apply(setters ...func(ops, diag, trace io.Writer)) {
	for _, set := range setters {
		set(s.Ops, s.Diag, s.Trace)
	}
}

// Close closes any files the streams opened.
func (s *Streams) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
