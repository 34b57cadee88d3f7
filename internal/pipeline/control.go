package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rbright/cluely/internal/fsm"
	"github.com/rbright/cluely/internal/gateway"
	"github.com/rbright/cluely/internal/ipc"
)

// Status is the JSON body of a status response.
type Status struct {
	Stage      Stage  `json:"stage"`
	View       View   `json:"view"`
	Voice      string `json:"voice"`
	Debugging  bool   `json:"debugging"`
	HasProblem bool   `json:"has_problem"`
	HasResult  bool   `json:"has_solution"`
	Extras     int    `json:"extras"`
	LastError  string `json:"last_error,omitempty"`
}

// Handle serves control commands from the runtime socket.
func (c *Coordinator) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		status := c.status()
		body, err := json.Marshal(status)
		if err != nil {
			return ipc.Failure(string(status.Stage), "encode status: %v", err)
		}
		return ipc.Success(string(status.Stage), string(body))
	case ipc.CommandStop:
		return c.stopVoice(ctx)
	case ipc.CommandReset:
		if err := c.Deliver(ctx, gateway.Event{Kind: gateway.EventResetView}); err != nil {
			return ipc.Failure(string(c.Snapshot().Stage), "%v", err)
		}
		return ipc.Success(string(c.Snapshot().Stage), "reset requested")
	default:
		return ipc.Failure(string(c.Snapshot().Stage), "unknown command: %s", req.Command)
	}
}

func (c *Coordinator) stopVoice(ctx context.Context) ipc.Response {
	stage := string(c.Snapshot().Stage)
	if c.transcriber == nil {
		return ipc.Failure(stage, "voice capture is not configured")
	}

	state := c.transcriber.State()
	if state == fsm.StateIdle {
		return ipc.Success(stage, "voice capture already stopped")
	}
	if err := c.transcriber.Stop(ctx); err != nil {
		return ipc.Failure(stage, "stop voice capture: %v", err)
	}
	return ipc.Success(stage, fmt.Sprintf("voice capture stopped (was %s)", state))
}

func (c *Coordinator) status() Status {
	d := c.Snapshot()
	voice := "unavailable"
	if c.transcriber != nil {
		voice = string(c.transcriber.State())
	}
	return Status{
		Stage:      d.Stage,
		View:       d.View,
		Voice:      voice,
		Debugging:  d.Debugging,
		HasProblem: d.Problem != nil,
		HasResult:  d.Solution != nil,
		Extras:     len(d.Extras),
		LastError:  d.LastError,
	}
}
