// Package fsm defines the transcription session transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateListening  State = "listening"
	StateStopping   State = "stopping"
	StateErrored    State = "errored"
)

const (
	EventStart          Event = "start"
	EventSessionStarted Event = "session_started"
	EventStop           Event = "stop"
	EventStopped        Event = "stopped"
	EventFail           Event = "fail"
)

// Transition returns the state reached by applying event to current.
// Invalid pairs leave the state unchanged and return an error.
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventSessionStarted:
			return StateListening, nil
		case EventStop:
			return StateStopping, nil
		case EventFail:
			return StateErrored, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateListening:
		switch event {
		case EventStop:
			return StateStopping, nil
		case EventFail:
			return StateErrored, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateStopping:
		switch event {
		case EventStopped:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateErrored:
		switch event {
		case EventStart:
			return StateConnecting, nil
		case EventStop:
			return StateStopping, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

// Active reports whether a connection attempt or live stream may exist.
func (s State) Active() bool {
	return s == StateConnecting || s == StateListening
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
