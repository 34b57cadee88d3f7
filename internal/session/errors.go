package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotIdle rejects Start while a session is connecting, listening, or stopping.
	ErrNotIdle = errors.New("transcription session already active")
	// ErrSuperseded reports that Stop or Close overtook an in-flight Start.
	ErrSuperseded = errors.New("transcription session superseded")
	// ErrClosed rejects Start after teardown.
	ErrClosed = errors.New("transcription session closed")
)

// TokenError wraps a failed token exchange.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("fetch transcription token: %v", e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }

// StreamError wraps a failed connect or a failure reported by the live stream.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("transcription stream: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
