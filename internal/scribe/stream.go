package scribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"

	"github.com/rbright/cluely/internal/audio"
	"github.com/rbright/cluely/internal/gateway"
	"github.com/rbright/cluely/internal/logging"
)

const DefaultRealtimeURL = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"

// Option configures a Streamer.
type Option func(*Streamer)

// WithURL overrides the realtime endpoint.
func WithURL(raw string) Option {
	return func(s *Streamer) {
		if strings.TrimSpace(raw) != "" {
			s.url = strings.TrimSpace(raw)
		}
	}
}

// WithLanguage pins the recognition language. Empty lets the service detect it.
func WithLanguage(code string) Option {
	return func(s *Streamer) {
		s.language = strings.TrimSpace(code)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Streamer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Streamer opens realtime transcription connections fed by a Microphone. It
// implements gateway.Streamer.
type Streamer struct {
	url      string
	language string
	mic      Microphone
	logger   *slog.Logger
}

func NewStreamer(mic Microphone, opts ...Option) *Streamer {
	s := &Streamer{
		url:    DefaultRealtimeURL,
		mic:    mic,
		logger: logging.Discard(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Connect dials the service, starts microphone capture, and returns once
// both are running. Callbacks fire from the stream's own goroutines until
// Close returns.
func (s *Streamer) Connect(ctx context.Context, token string, cfg gateway.StreamConfig, cb gateway.StreamCallbacks) (gateway.Stream, error) {
	if s.mic == nil {
		return nil, errors.New("scribe: no microphone configured")
	}
	wsURL, err := s.buildURL(token, cfg)
	if err != nil {
		return nil, fmt.Errorf("scribe: build url: %w", err)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scribe: dial: %w", err)
	}

	// The connection outlives ctx; only Close ends it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	source, err := s.mic.Open(runCtx, cfg.Microphone)
	if err != nil {
		cancel()
		_ = conn.Close(websocket.StatusNormalClosure, "microphone unavailable")
		return nil, fmt.Errorf("scribe: open microphone: %w", err)
	}

	st := &stream{
		conn:   conn,
		source: source,
		cb:     cb,
		logger: s.logger,
		cancel: cancel,
	}
	st.wg.Add(2)
	go st.readLoop(runCtx)
	go st.writeLoop(runCtx)
	return st, nil
}

func (s *Streamer) buildURL(token string, cfg gateway.StreamConfig) (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", err
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = gateway.ScribeModelID
	}

	q := u.Query()
	q.Set("model_id", modelID)
	q.Set("token", token)
	q.Set("audio_format", "pcm_"+strconv.Itoa(audio.SampleRate))
	q.Set("commit_strategy", "vad")
	if s.language != "" {
		q.Set("language_code", s.language)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// serverMessage covers every server frame the stream acts on.
type serverMessage struct {
	MessageType string `json:"message_type"`
	SessionID   string `json:"session_id"`
	Text        string `json:"text"`
	Error       string `json:"error"`
}

type audioChunk struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
	Commit      bool   `json:"commit"`
	SampleRate  int    `json:"sample_rate"`
}

var errorTypes = map[string]bool{
	"error":                       true,
	"auth_error":                  true,
	"quota_exceeded":              true,
	"rate_limited":                true,
	"resource_exhausted":          true,
	"input_error":                 true,
	"transcriber_error":           true,
	"chunk_size_exceeded":         true,
	"session_time_limit_exceeded": true,
	"unaccepted_terms":            true,
}

type stream struct {
	conn   *websocket.Conn
	source AudioSource
	cb     gateway.StreamCallbacks
	logger *slog.Logger
	cancel context.CancelFunc

	wg      sync.WaitGroup
	once    sync.Once
	closing atomic.Bool
	failed  atomic.Bool
}

// Close stops capture and closes the socket. No callback fires after it
// returns.
func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		s.closing.Store(true)
		_ = s.source.Stop()
		err = s.conn.Close(websocket.StatusNormalClosure, "session closed")
		s.cancel()
		s.wg.Wait()
	})
	if err != nil && !s.failed.Load() && !isClosed(err) {
		return fmt.Errorf("scribe: close: %w", err)
	}
	return nil
}

func (s *stream) readLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		_, data, err := s.conn.Read(ctx)
		if err != nil {
			s.fail(fmt.Errorf("scribe: read: %w", err))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("scribe: ignoring undecodable frame", "error", err.Error())
			continue
		}
		if s.closing.Load() {
			return
		}

		switch {
		case msg.MessageType == "session_started":
			s.logger.Debug("scribe session started", "scribe_session_id", msg.SessionID)
			s.cb.SessionStarted()
		case msg.MessageType == "partial_transcript":
			s.cb.Partial(msg.Text)
		case msg.MessageType == "committed_transcript":
			s.cb.Committed(msg.Text)
		case errorTypes[msg.MessageType]:
			detail := msg.Error
			if detail == "" {
				detail = msg.MessageType
			}
			s.fail(fmt.Errorf("scribe: %s: %s", msg.MessageType, detail))
			return
		}
	}
}

func (s *stream) writeLoop(ctx context.Context) {
	defer s.wg.Done()
	for chunk := range s.source.Chunks() {
		frame, err := json.Marshal(audioChunk{
			MessageType: "input_audio_chunk",
			AudioBase64: base64.StdEncoding.EncodeToString(chunk),
			SampleRate:  audio.SampleRate,
		})
		if err != nil {
			s.fail(fmt.Errorf("scribe: encode audio: %w", err))
			return
		}
		if err := s.conn.Write(ctx, websocket.MessageText, frame); err != nil {
			s.fail(fmt.Errorf("scribe: write: %w", err))
			return
		}
	}
}

// fail reports the first failure of a stream that is not being closed.
func (s *stream) fail(err error) {
	if s.closing.Load() || !s.failed.CompareAndSwap(false, true) {
		return
	}
	s.logger.Warn("scribe stream failed", "error", err.Error())
	_ = s.source.Stop()
	s.cb.Error(err)
}

func isClosed(err error) bool {
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, context.Canceled)
}
