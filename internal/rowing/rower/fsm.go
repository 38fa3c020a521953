package rower

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation is returned when the stroke state machine meets a
// state it does not cover. The state is left unchanged.
var ErrInvariantViolation = errors.New("stroke state machine invariant violated")

// State is the stroke phase.
type State int

const (
	WaitingForDrive State = iota
	Drive
	Recovery
	Stopped
)

func (s State) String() string {
	switch s {
	case WaitingForDrive:
		return "WaitingForDrive"
	case Drive:
		return "Drive"
	case Recovery:
		return "Recovery"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range []State{WaitingForDrive, Drive, Recovery, Stopped} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown stroke state %q", text)
}

// conditions is everything the transition function looks at, sampled once
// per impulse after the flywheel update.
type conditions struct {
	aboveMinimumSpeed bool
	powered           bool
	unpowered         bool
	dwelling          bool

	firstStroke        bool // at most one stroke started so far
	driveLongEnough    bool // since drive start ≥ minimumDriveTime
	recoveryLongEnough bool // since recovery start ≥ minimumRecoveryTime
	pauseDue           bool // since drive start ≥ maximumStrokeTimeBeforePause
}

type action int

const (
	actionNone action = iota
	actionStartDrive
	actionStartRecovery
	actionUpdateDrive
	actionUpdateDriveEarly
	actionEndDriveStartRecovery
	actionUpdateRecovery
	actionUpdateRecoveryEarly
	actionEndRecoveryStartDrive
	actionPause
)

var actionNames = [...]string{
	actionNone:                  "none",
	actionStartDrive:            "start-drive",
	actionStartRecovery:         "start-recovery",
	actionUpdateDrive:           "update-drive",
	actionUpdateDriveEarly:      "update-drive-early",
	actionEndDriveStartRecovery: "end-drive-start-recovery",
	actionUpdateRecovery:        "update-recovery",
	actionUpdateRecoveryEarly:   "update-recovery-early",
	actionEndRecoveryStartDrive: "end-recovery-start-drive",
	actionPause:                 "pause",
}

func (a action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// transition is the stroke state machine. It has no side effects; the Rower
// applies the returned action.
func transition(s State, c conditions) (State, action, error) {
	switch s {
	case Stopped:
		return Stopped, actionNone, nil

	case WaitingForDrive:
		switch {
		case c.aboveMinimumSpeed && c.powered:
			return Drive, actionStartDrive, nil
		case c.aboveMinimumSpeed && c.unpowered:
			return Recovery, actionStartRecovery, nil
		default:
			return WaitingForDrive, actionNone, nil
		}

	case Drive:
		switch {
		case (c.driveLongEnough || c.firstStroke) && c.unpowered:
			return Recovery, actionEndDriveStartRecovery, nil
		case c.unpowered:
			return Drive, actionUpdateDriveEarly, nil
		default:
			return Drive, actionUpdateDrive, nil
		}

	case Recovery:
		switch {
		case c.pauseDue && c.dwelling:
			return WaitingForDrive, actionPause, nil
		case c.recoveryLongEnough && c.powered:
			return Drive, actionEndRecoveryStartDrive, nil
		case c.powered:
			return Recovery, actionUpdateRecoveryEarly, nil
		default:
			return Recovery, actionUpdateRecovery, nil
		}

	default:
		return s, actionNone, fmt.Errorf("%w: %v", ErrInvariantViolation, s)
	}
}
