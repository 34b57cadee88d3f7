package scribe

import (
	"context"
	"log/slog"

	"github.com/rbright/cluely/internal/audio"
	"github.com/rbright/cluely/internal/gateway"
	"github.com/rbright/cluely/internal/logging"
)

// AudioSource yields 16kHz mono s16le PCM until stopped.
type AudioSource interface {
	Chunks() <-chan []byte
	Stop() error
}

// Microphone opens an AudioSource honouring the requested processing.
type Microphone interface {
	Open(ctx context.Context, cfg gateway.MicrophoneConfig) (AudioSource, error)
}

// PulseMicrophone captures from a Pulse source chosen by the audio config.
// Echo cancellation maps to picking an echo-cancel source, which the
// PulseAudio/PipeWire module pairs with noise suppression and gain control.
type PulseMicrophone struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

func (m PulseMicrophone) Open(ctx context.Context, cfg gateway.MicrophoneConfig) (AudioSource, error) {
	logger := m.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	selection, err := audio.SelectDevice(ctx, audio.Preferences{
		Input:            m.Input,
		Fallback:         m.Fallback,
		EchoCancellation: cfg.EchoCancellation,
	})
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" {
		logger.Warn(selection.Warning)
	}
	logger.Debug("microphone selected", "device", selection.Device.ID, "description", selection.Device.Description)

	return audio.StartCapture(ctx, selection.Device)
}
