package cli

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/cluely/internal/gateway"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/cluely.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/cluely.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{
			name:     "help short flag",
			args:     []string{"-h"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "help long flag",
			args:     []string{"--help"},
			wantCmd:  CommandHelp,
			wantHelp: true,
		},
		{
			name:     "version flag",
			args:     []string{"--version"},
			wantCmd:  CommandVersion,
			wantHelp: false,
		},
		{
			name:    "config after command",
			args:    []string{"status", "--config", "/tmp/cfg"},
			wantErr: "unexpected arguments after command",
		},
		{
			name:    "missing config path",
			args:    []string{"--config"},
			wantErr: "requires a path",
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: "unknown flag",
		},
		{
			name:    "unknown command",
			args:    []string{"toggle"},
			wantErr: "unknown command",
		},
		{
			name:    "extra args after command",
			args:    []string{"doctor", "extra"},
			wantErr: "unexpected arguments",
		},
		{
			name:    "emit without event",
			args:    []string{"emit"},
			wantErr: "requires an event name",
		},
		{
			name:    "emit unknown event",
			args:    []string{"emit", "solve-done"},
			wantErr: "unknown event kind",
		},
		{
			name:    "emit bad body",
			args:    []string{"emit", "solve-error", "{"},
			wantErr: "emit body",
		},
		{
			name:    "emit too many args",
			args:    []string{"emit", "solve-error", "{}", "more"},
			wantErr: "unexpected arguments after emit",
		},
		{
			name:     "valid reset command",
			args:     []string{"reset"},
			wantCmd:  CommandReset,
			wantHelp: false,
		},
		{
			name:     "valid run with config",
			args:     []string{"--config", "/tmp/cfg", "run"},
			wantCmd:  CommandRun,
			wantHelp: false,
			wantPath: "/tmp/cfg",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestParseEmitWithBody(t *testing.T) {
	parsed, err := Parse([]string{"emit", "solve-success", `{"payload":{"solution":{"code":"x","thoughts":["t"],"time_complexity":"O(1)","space_complexity":"O(1)"}},"generation":4}`})
	require.NoError(t, err)
	require.Equal(t, CommandEmit, parsed.Command)
	require.Equal(t, gateway.Event{
		Kind: gateway.EventSolveSuccess,
		Payload: &gateway.SolutionPayload{Solution: &gateway.Solution{
			Code:            "x",
			Thoughts:        []string{"t"},
			TimeComplexity:  "O(1)",
			SpaceComplexity: "O(1)",
		}},
		Generation: 4,
	}, parsed.Event)
}

func TestParseEmitBodyCannotOverrideKind(t *testing.T) {
	parsed, err := Parse([]string{"emit", "solve-error", `{"kind":"reset-view","message":"timeout"}`})
	require.NoError(t, err)
	require.Equal(t, gateway.Event{Kind: gateway.EventSolveError, Message: "timeout"}, parsed.Event)
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("cluely")
	require.Contains(t, text, "run")
	require.Contains(t, text, "reset")
	require.Contains(t, text, "emit <event> [json]")
	require.Contains(t, text, "no-extra-screenshots")
	require.Contains(t, text, "--config PATH")
}
