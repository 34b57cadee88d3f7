package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/cluely/internal/audio"
	"github.com/rbright/cluely/internal/bridge"
	"github.com/rbright/cluely/internal/cli"
	"github.com/rbright/cluely/internal/config"
	"github.com/rbright/cluely/internal/doctor"
	"github.com/rbright/cluely/internal/ipc"
	"github.com/rbright/cluely/internal/logging"
	"github.com/rbright/cluely/internal/pipeline"
	"github.com/rbright/cluely/internal/version"
)

const binaryName = "cluely"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandReset:
		return r.forwardOrFail(ctx, ipc.CommandReset)
	case cli.CommandEmit:
		return r.commandEmit(ctx, cfgLoaded.Config.Gateway, parsed)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			yesNo(device.Available),
			yesNo(device.Muted),
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, err := ipc.Call(ctx, socketPath, ipc.CommandStatus)
	if errors.Is(err, ipc.ErrNotRunning) {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintln(r.Stdout, formatStatus(resp))
	return 0
}

// formatStatus renders the daemon's status body on one line. Bodies that do
// not decode fall back to the bare stage.
func formatStatus(resp ipc.Response) string {
	var status pipeline.Status
	if err := json.Unmarshal([]byte(resp.Message), &status); err != nil {
		if resp.State == "" {
			return string(pipeline.StageQueued)
		}
		return resp.State
	}

	line := fmt.Sprintf("stage=%s view=%s voice=%s debugging=%t problem=%s solution=%s extras=%d",
		status.Stage,
		status.View,
		status.Voice,
		status.Debugging,
		yesNo(status.HasProblem),
		yesNo(status.HasResult),
		status.Extras,
	)
	if status.LastError != "" {
		line += fmt.Sprintf(" last_error=%q", status.LastError)
	}
	return line
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, err := ipc.Call(ctx, socketPath, command)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

func (r Runner) commandEmit(ctx context.Context, cfg config.GatewayConfig, parsed cli.Parsed) int {
	client, err := bridge.Dial(ctx, cfg.Listen, time.Duration(cfg.DialTimeoutMS)*time.Millisecond)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = client.Close() }()

	delivered, err := client.Publish(ctx, parsed.Event)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(r.Stdout, "%s delivered to %d subscriber(s)\n", parsed.Event.Kind, delivered)
	return 0
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
