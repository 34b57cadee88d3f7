package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedPayload marks a success event that arrived without its
	// nested solution. Such events are logged and dropped.
	ErrMalformedPayload = errors.New("received empty or invalid solution data")
	// ErrClosed rejects deliveries after Close.
	ErrClosed = errors.New("pipeline coordinator closed")
)

// StageError records a solve or debug failure reported by the solver.
type StageError struct {
	Stage   Stage
	Message string
}

func (e *StageError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed", e.Stage)
	}
	return fmt.Sprintf("%s failed: %s", e.Stage, e.Message)
}
