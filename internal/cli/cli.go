// Package cli parses cluely command-line arguments.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/cluely/internal/gateway"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandStop    Command = "stop"
	CommandReset   Command = "reset"
	CommandStatus  Command = "status"
	CommandEmit    Command = "emit"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandStop:    {},
	CommandReset:   {},
	CommandStatus:  {},
	CommandEmit:    {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Event is set for emit.
	Event gateway.Event
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			rest := args[i+1:]
			if cmd == CommandEmit {
				ev, err := parseEmit(rest)
				if err != nil {
					return Parsed{}, err
				}
				parsed.Event = ev
				return parsed, nil
			}
			if len(rest) > 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

// parseEmit reads `<event> [json]`. The JSON object supplies the remaining
// event fields (message, payload, generation).
func parseEmit(args []string) (gateway.Event, error) {
	if len(args) == 0 {
		return gateway.Event{}, errors.New("emit requires an event name")
	}
	if len(args) > 2 {
		return gateway.Event{}, errors.New(`unexpected arguments after emit "<event> [json]"`)
	}

	kind, err := gateway.ParseEventKind(args[0])
	if err != nil {
		return gateway.Event{}, err
	}

	var ev gateway.Event
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &ev); err != nil {
			return gateway.Event{}, fmt.Errorf("emit body: %w", err)
		}
	}
	ev.Kind = kind
	return ev, nil
}

func HelpText(binaryName string) string {
	kinds := make([]string, 0, len(gateway.EventKinds))
	for _, kind := range gateway.EventKinds {
		kinds = append(kinds, string(kind))
	}

	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  run                   Run the daemon (gateway ingress, voice session, control socket)
  stop                  Stop voice capture and submit the transcript
  reset                 Reset the pipeline to the queue view
  status                Print pipeline stage, view, and voice state
  emit <event> [json]   Publish a lifecycle event to the running daemon
  devices               List available input devices
  doctor                Run configuration and environment checks
  version               Print version information
  help                  Show this help

Events:
  %[2]s

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/cluely/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName, strings.Join(kinds, ", "))
}
