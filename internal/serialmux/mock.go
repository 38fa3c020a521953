package serialmux

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// ErrPortClosed is returned by TestableSerialPort after Close.
var ErrPortClosed = errors.New("serial port closed")

// TestableSerialPort is an in-memory impulse counter for tests. Reads block
// until lines are queued or the port is closed; writes are captured.
type TestableSerialPort struct {
	mu       sync.Mutex
	readCond *sync.Cond

	read    bytes.Buffer
	written bytes.Buffer

	// WriteError is returned by the next Write call if set.
	WriteError error
	// CloseError is returned by Close if set.
	CloseError error

	closed      bool
	readTimeout time.Duration
}

// NewTestableSerialPort returns an open port with nothing to read.
func NewTestableSerialPort() *TestableSerialPort {
	p := &TestableSerialPort{}
	p.readCond = sync.NewCond(&p.mu)
	return p
}

// Read blocks until data is queued or the port is closed.
func (p *TestableSerialPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for !p.closed && p.read.Len() == 0 {
		p.readCond.Wait()
	}
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.read.Read(b)
}

// Write captures b.
func (p *TestableSerialPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}
	return p.written.Write(b)
}

// Close wakes blocked readers and fails further I/O.
func (p *TestableSerialPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.readCond.Broadcast()
	return p.CloseError
}

// SetReadTimeout implements TimeoutSerialPorter.
func (p *TestableSerialPort) SetReadTimeout(timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeout = timeout
	return nil
}

// AddLines queues newline-terminated lines, as the impulse counter would
// print them.
func (p *TestableSerialPort) AddLines(lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, l := range lines {
		p.read.WriteString(l)
		p.read.WriteByte('\n')
	}
	p.readCond.Broadcast()
}

// Written returns everything written to the port so far.
func (p *TestableSerialPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}
