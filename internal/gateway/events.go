// Package gateway defines the boundary to everything outside the coordinator:
// the process that emits solve lifecycle events, the token exchange, the
// streaming speech-to-text connection, and the screenshot queue.
package gateway

import (
	"encoding/json"
	"fmt"
)

// EventKind names a lifecycle notification. The string values are the wire
// identifiers used by the external process.
type EventKind string

const (
	EventCaptureTaken       EventKind = "capture-taken"
	EventResetView          EventKind = "reset-view"
	EventSolveStart         EventKind = "solve-start"
	EventSolveError         EventKind = "solve-error"
	EventSolveSuccess       EventKind = "solve-success"
	EventDebugStart         EventKind = "debug-start"
	EventDebugSuccess       EventKind = "debug-success"
	EventDebugError         EventKind = "debug-error"
	EventNoExtraScreenshots EventKind = "no-extra-screenshots"
)

// EventKinds lists every kind in a stable order.
var EventKinds = []EventKind{
	EventCaptureTaken,
	EventResetView,
	EventSolveStart,
	EventSolveError,
	EventSolveSuccess,
	EventDebugStart,
	EventDebugSuccess,
	EventDebugError,
	EventNoExtraScreenshots,
}

func ParseEventKind(raw string) (EventKind, error) {
	for _, kind := range EventKinds {
		if string(kind) == raw {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", raw)
}

// Solution is the four-field result produced by the solver.
type Solution struct {
	Code            string   `json:"code"`
	Thoughts        []string `json:"thoughts"`
	TimeComplexity  string   `json:"time_complexity"`
	SpaceComplexity string   `json:"space_complexity"`
}

// SolutionPayload wraps a Solution the way the external process sends it.
// Solution is nil when the payload arrived without its nested data.
type SolutionPayload struct {
	Solution *Solution `json:"solution"`
}

// Event is one lifecycle notification. Message is set for solve-error and
// Payload for the two success kinds. Generation optionally tags solve and
// debug outcomes with the solve attempt they belong to; zero means untagged.
type Event struct {
	Kind       EventKind        `json:"kind"`
	Message    string           `json:"message,omitempty"`
	Payload    *SolutionPayload `json:"payload,omitempty"`
	Generation uint64           `json:"generation,omitempty"`
}

// DecodeEvent parses the JSON form of an Event and validates its kind.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if _, err := ParseEventKind(string(ev.Kind)); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// Screenshot is one queued capture.
type Screenshot struct {
	Path    string `json:"path"`
	Preview string `json:"preview"`
}
