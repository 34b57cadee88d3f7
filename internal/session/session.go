// Package session owns the lifecycle of one streaming speech-to-text
// connection: token exchange, connect, transcript accumulation, and stop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/cluely/internal/fsm"
	"github.com/rbright/cluely/internal/gateway"
	"github.com/rbright/cluely/internal/logging"
	"github.com/rbright/cluely/internal/metrics"
	"github.com/rbright/cluely/internal/transcript"
)

var allStates = []string{
	string(fsm.StateIdle),
	string(fsm.StateConnecting),
	string(fsm.StateListening),
	string(fsm.StateStopping),
	string(fsm.StateErrored),
}

// Options wires the consumers of session output. Every func is optional and
// is called without the session lock held.
type Options struct {
	// OnFinalTranscript receives the accumulated transcript once per Stop,
	// only when it is non-empty.
	OnFinalTranscript func(text string)
	// OnPartialTranscript mirrors every accepted partial for live display.
	OnPartialTranscript func(text string)
	// OnError surfaces token and stream failures.
	OnError func(err error)

	StreamConfig *gateway.StreamConfig
	Metrics      *metrics.Metrics
}

// Snapshot is a read-only view for rendering.
type Snapshot struct {
	ID         string
	State      fsm.State
	Partial    string
	Final      string
	Error      string
	Generation uint64
}

// Session is safe for concurrent use. The lock is never held across token
// exchange, connect, or close; each of those re-checks the generation after
// returning and drops results that belong to a superseded attempt.
type Session struct {
	logger  *slog.Logger
	tokens  gateway.TokenSource
	streams gateway.Streamer
	cfg     gateway.StreamConfig
	opts    Options
	metrics *metrics.Metrics

	mu         sync.Mutex
	state      fsm.State
	generation uint64
	id         string
	transcript transcript.Accumulator
	lastErr    error
	stream     gateway.Stream
	closed     bool
}

func New(logger *slog.Logger, tokens gateway.TokenSource, streams gateway.Streamer, opts Options) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	cfg := gateway.DefaultStreamConfig()
	if opts.StreamConfig != nil {
		cfg = *opts.StreamConfig
	}

	s := &Session{
		logger:  logger,
		tokens:  tokens,
		streams: streams,
		cfg:     cfg,
		opts:    opts,
		metrics: opts.Metrics,
		state:   fsm.StateIdle,
	}
	s.metrics.RecordSessionState(string(s.state), allStates)
	return s
}

func (s *Session) State() fsm.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		State:      s.state,
		Partial:    s.transcript.Partial(),
		Final:      s.transcript.Text(),
		Generation: s.generation,
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	return snap
}

// Start fetches a fresh token and opens the stream. It returns once the
// connection is open; the session reaches listening when the stream reports
// that it started. A failed Start leaves the session errored.
func (s *Session) Start(ctx context.Context) error {
	connect, err := s.Begin()
	if err != nil {
		return err
	}
	return connect(ctx)
}

// Begin claims the session for a new attempt without doing any I/O: the
// session is connecting when Begin returns, so a Stop or Cancel issued after
// it supersedes the attempt. The returned func performs the token exchange
// and connect, and behaves like Start from that point on.
func (s *Session) Begin() (func(context.Context) error, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if err := s.transitionLocked(fsm.EventStart); err != nil {
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", ErrNotIdle, state)
	}
	s.generation++
	gen := s.generation
	s.id = uuid.NewString()
	s.transcript.Reset()
	s.lastErr = nil
	logger := s.logger.With("session_id", s.id, "generation", gen)
	s.mu.Unlock()

	s.metrics.RecordSessionStart()
	logger.Info("transcription session starting", "model_id", s.cfg.ModelID)

	return func(ctx context.Context) error { return s.connect(ctx, gen, logger) }, nil
}

func (s *Session) connect(ctx context.Context, gen uint64, logger *slog.Logger) error {
	if !s.current(gen) {
		logger.Info("transcription start superseded before token exchange")
		return ErrSuperseded
	}

	started := time.Now()
	token, err := s.tokens.FetchToken(ctx)
	s.metrics.RecordTokenFetch(time.Since(started))
	if err == nil && strings.TrimSpace(token) == "" {
		err = errors.New("empty token")
	}
	if err != nil {
		return s.fail(gen, &TokenError{Err: err}, "token")
	}
	if !s.current(gen) {
		logger.Info("transcription start superseded after token exchange")
		return ErrSuperseded
	}

	stream, err := s.streams.Connect(ctx, token, s.cfg, s.callbacks(gen))
	if err != nil {
		return s.fail(gen, &StreamError{Err: err}, "connect")
	}

	s.mu.Lock()
	switch {
	case s.generation != gen:
		s.mu.Unlock()
		_ = stream.Close()
		logger.Info("transcription start superseded after connect")
		return ErrSuperseded
	case s.state == fsm.StateErrored:
		startErr := s.lastErr
		s.mu.Unlock()
		_ = stream.Close()
		return startErr
	}
	s.stream = stream
	s.mu.Unlock()

	logger.Info("transcription stream connected", "connect_ms", time.Since(started).Milliseconds())
	return nil
}

// Stop disconnects and emits the accumulated transcript. It is a no-op when
// nothing is running. Partial and final text stay readable until the next
// Start.
func (s *Session) Stop(ctx context.Context) error {
	return s.halt(ctx, true)
}

// Cancel disconnects without emitting the accumulated transcript.
func (s *Session) Cancel(ctx context.Context) error {
	return s.halt(ctx, false)
}

// Close tears the session down. A connected stream is always disconnected.
// Start fails with ErrClosed afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.halt(context.Background(), false)
}

func (s *Session) halt(_ context.Context, flush bool) error {
	s.mu.Lock()
	if s.state == fsm.StateIdle || s.state == fsm.StateStopping {
		s.mu.Unlock()
		return nil
	}
	if err := s.transitionLocked(fsm.EventStop); err != nil {
		s.mu.Unlock()
		return err
	}
	s.generation++
	stream := s.stream
	s.stream = nil
	final := s.transcript.Text()
	logger := s.logger.With("session_id", s.id)
	s.mu.Unlock()

	var closeErr error
	if stream != nil {
		if closeErr = stream.Close(); closeErr != nil {
			logger.Warn("transcription stream close failed", "error", closeErr.Error())
		}
	}

	s.mu.Lock()
	_ = s.transitionLocked(fsm.EventStopped)
	s.mu.Unlock()

	logger.Info("transcription session stopped", "flush", flush, "transcript_chars", len(final))
	if flush && final != "" {
		s.metrics.RecordFinalTranscript()
		if s.opts.OnFinalTranscript != nil {
			s.opts.OnFinalTranscript(final)
		}
	}
	return closeErr
}

func (s *Session) callbacks(gen uint64) gateway.StreamCallbacks {
	return gateway.StreamCallbacks{
		OnSessionStarted:      func() { s.onSessionStarted(gen) },
		OnPartialTranscript:   func(text string) { s.onPartial(gen, text) },
		OnCommittedTranscript: func(text string) { s.onCommitted(gen, text) },
		OnError:               func(err error) { s.onStreamError(gen, err) },
	}
}

func (s *Session) onSessionStarted(gen uint64) {
	s.mu.Lock()
	if s.generation != gen || s.state != fsm.StateConnecting {
		s.mu.Unlock()
		s.metrics.RecordStaleCallback()
		return
	}
	_ = s.transitionLocked(fsm.EventSessionStarted)
	id := s.id
	s.mu.Unlock()

	s.logger.Info("transcription session listening", "session_id", id)
}

func (s *Session) onPartial(gen uint64, text string) {
	s.mu.Lock()
	if s.generation != gen || !s.state.Active() {
		s.mu.Unlock()
		s.metrics.RecordStaleCallback()
		return
	}
	s.transcript.SetPartial(text)
	s.mu.Unlock()

	s.metrics.RecordPartial()
	if s.opts.OnPartialTranscript != nil {
		s.opts.OnPartialTranscript(text)
	}
}

func (s *Session) onCommitted(gen uint64, text string) {
	s.mu.Lock()
	if s.generation != gen || !s.state.Active() {
		s.mu.Unlock()
		s.metrics.RecordStaleCallback()
		return
	}
	accepted := s.transcript.Commit(text)
	s.mu.Unlock()

	if accepted {
		s.metrics.RecordCommitted()
	}
	if s.opts.OnPartialTranscript != nil {
		s.opts.OnPartialTranscript("")
	}
}

// onStreamError moves a live session to errored and releases its stream.
// There is no reconnect.
func (s *Session) onStreamError(gen uint64, err error) {
	if err == nil {
		err = errors.New("unknown stream error")
	}
	s.mu.Lock()
	if s.generation != gen || !s.state.Active() {
		s.mu.Unlock()
		s.metrics.RecordStaleCallback()
		return
	}
	streamErr := &StreamError{Err: err}
	_ = s.transitionLocked(fsm.EventFail)
	s.lastErr = streamErr
	stream := s.stream
	s.stream = nil
	id := s.id
	s.mu.Unlock()

	s.logger.Error("transcription stream failed", "session_id", id, "error", err.Error())
	s.metrics.RecordSessionError("stream")
	if stream != nil {
		go func() { _ = stream.Close() }()
	}
	if s.opts.OnError != nil {
		s.opts.OnError(streamErr)
	}
}

// fail records a Start failure for gen unless a newer attempt owns the session.
func (s *Session) fail(gen uint64, err error, kind string) error {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if s.state == fsm.StateErrored {
		// The stream already reported a failure for this attempt.
		prior := s.lastErr
		s.mu.Unlock()
		return prior
	}
	_ = s.transitionLocked(fsm.EventFail)
	s.lastErr = err
	id := s.id
	s.mu.Unlock()

	s.logger.Error("transcription session failed", "session_id", id, "stage", kind, "error", err.Error())
	var tokenErr *TokenError
	if errors.As(err, &tokenErr) {
		s.metrics.RecordSessionError("token")
	} else {
		s.metrics.RecordSessionError("stream")
	}
	if s.opts.OnError != nil {
		s.opts.OnError(err)
	}
	return err
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *Session) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(s.state, event)
	if err != nil {
		return err
	}
	s.state = next
	s.metrics.RecordSessionState(string(next), allStates)
	return nil
}
