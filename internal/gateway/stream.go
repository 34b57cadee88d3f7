package gateway

import "context"

// ScribeModelID is the realtime speech-to-text model every session requests.
const ScribeModelID = "scribe_v2_realtime"

// MicrophoneConfig carries the capture processing flags requested from the
// audio source.
type MicrophoneConfig struct {
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
	AutoGainControl  bool `json:"autoGainControl"`
}

type StreamConfig struct {
	ModelID    string           `json:"modelId"`
	Microphone MicrophoneConfig `json:"microphone"`
}

// DefaultStreamConfig is the fixed configuration used for every connection.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ModelID: ScribeModelID,
		Microphone: MicrophoneConfig{
			EchoCancellation: true,
			NoiseSuppression: true,
			AutoGainControl:  true,
		},
	}
}

// StreamCallbacks are invoked by a Stream from its own goroutines. Nil
// callbacks are skipped.
type StreamCallbacks struct {
	OnSessionStarted      func()
	OnPartialTranscript   func(text string)
	OnCommittedTranscript func(text string)
	OnError               func(err error)
}

func (c StreamCallbacks) SessionStarted() {
	if c.OnSessionStarted != nil {
		c.OnSessionStarted()
	}
}

func (c StreamCallbacks) Partial(text string) {
	if c.OnPartialTranscript != nil {
		c.OnPartialTranscript(text)
	}
}

func (c StreamCallbacks) Committed(text string) {
	if c.OnCommittedTranscript != nil {
		c.OnCommittedTranscript(text)
	}
}

func (c StreamCallbacks) Error(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

// Stream is a live speech-to-text connection.
type Stream interface {
	Close() error
}

// Streamer opens a streaming connection authorised by a single-use token.
type Streamer interface {
	Connect(ctx context.Context, token string, cfg StreamConfig, cb StreamCallbacks) (Stream, error)
}

// TokenSource exchanges credentials for a fresh single-use token.
type TokenSource interface {
	FetchToken(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(context.Context) (string, error)

func (f TokenFunc) FetchToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// ScreenshotSource lists the extra screenshots queued for the next debug pass.
type ScreenshotSource interface {
	Screenshots(ctx context.Context) ([]Screenshot, error)
}

// Handler receives one Event.
type Handler func(Event)

// EventSource delivers each occurrence of a kind exactly once to every
// subscribed handler.
type EventSource interface {
	Subscribe(kind EventKind, fn Handler) (unsubscribe func())
}
