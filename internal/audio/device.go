// Package audio handles device discovery, selection, and PCM capture streams.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// echoCancelTerm matches sources created by PulseAudio/PipeWire's
// module-echo-cancel, which also applies noise suppression and gain control.
const echoCancelTerm = "echo-cancel"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Preferences are the audio.input/audio.fallback config values plus the
// processing requested by the transcription stream.
type Preferences struct {
	Input            string
	Fallback         string
	EchoCancellation bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("cluely"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns available Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves pref against live devices.
func SelectDevice(ctx context.Context, pref Preferences) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, pref)
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
// With no explicit input, a usable echo-cancel source wins over the default
// when echo cancellation is requested.
func selectDeviceFromList(devices []Device, pref Preferences) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	input := normalizeTerm(pref.Input)
	fallback := normalizeTerm(pref.Fallback)

	var defaultDevice, byInput, byFallback, echoCancel *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byInput == nil && input != "" && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && fallback != "" && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
		if echoCancel == nil && usable(*dev) && deviceMatches(*dev, echoCancelTerm) {
			echoCancel = dev
		}
	}

	if input == "" && pref.EchoCancellation && echoCancel != nil {
		return Selection{Device: *echoCancel}, nil
	}

	var primary *Device
	switch {
	case input == "":
		if defaultDevice == nil {
			return Selection{}, errors.New("default audio source is unavailable")
		}
		primary = defaultDevice
	case byInput != nil:
		primary = byInput
	default:
		return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
	}
	if usable(*primary) {
		return Selection{Device: *primary}, nil
	}

	primaryReason := "unavailable"
	if primary.Muted {
		primaryReason = "muted"
	}

	var next *Device
	switch {
	case fallback != "" && byFallback == nil:
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, primaryReason, fallback)
	case fallback != "":
		next = byFallback
	case defaultDevice == nil:
		return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: default audio source is unavailable", primary.ID, primaryReason)
	default:
		next = defaultDevice
	}

	if !next.Available {
		return Selection{}, fmt.Errorf("audio fallback device %q is not available", next.ID)
	}
	if next.Muted {
		return Selection{}, fmt.Errorf("audio fallback device %q is muted", next.ID)
	}

	return Selection{
		Device:   *next,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, primaryReason, next.ID),
		Fallback: primary.ID != next.ID,
	}, nil
}

// normalizeTerm lowercases a preference; "default" means no preference.
func normalizeTerm(raw string) string {
	term := strings.TrimSpace(strings.ToLower(raw))
	if term == "default" {
		return ""
	}
	return term
}

func usable(dev Device) bool {
	return dev.Available && !dev.Muted
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
