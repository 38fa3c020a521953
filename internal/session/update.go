// Package session runs a Rower against a live impulse stream: it owns the
// engine goroutine, applies control commands, pauses stalled sessions and
// fans updates out to sinks such as the stroke recorder and publishers.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/rowing.report/internal/rowing/rower"
)

// Command is a control request applied by the runner between impulses.
type Command int

const (
	Start Command = iota
	Pause
	Stop
	Reset
)

func (c Command) String() string {
	switch c {
	case Start:
		return "start"
	case Pause:
		return "pause"
	case Stop:
		return "stop"
	case Reset:
		return "reset"
	default:
		return fmt.Sprintf("Command(%d)", int(c))
	}
}

// ParseCommand maps a command name to its Command.
func ParseCommand(name string) (Command, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "start":
		return Start, nil
	case "pause":
		return Pause, nil
	case "stop":
		return Stop, nil
	case "reset":
		return Reset, nil
	}
	return 0, fmt.Errorf("unknown command %q", name)
}

// Event says why an update was published.
type Event string

const (
	EventStateChanged    Event = "state_changed"
	EventStrokeCompleted Event = "stroke_completed"
	EventTick            Event = "tick"
	EventStall           Event = "stall"
	EventControl         Event = "control"
)

// Update is what sinks receive. Curves is set only on stroke completion.
type Update struct {
	Event   Event     `json:"event"`
	Command string    `json:"command,omitempty"` // set for EventControl
	Time    time.Time `json:"time"`

	rower.Snapshot
	Curves *rower.Curves `json:"curves,omitempty"`
}

// Sink consumes updates on its own goroutine. Consume may block; the runner
// queues ahead of it and drops when the queue is full.
type Sink interface {
	Name() string
	Consume(Update) error
	Close() error
}
