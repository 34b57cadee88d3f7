// Package ipc is the line-delimited JSON control protocol on the daemon's
// runtime socket.
package ipc

import "fmt"

// Control commands understood by the daemon.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandReset  = "reset"
)

type Request struct {
	Command string `json:"command"`
}

// Response carries the pipeline stage in State. Message holds the command
// output, Error the failure text when OK is false.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Success(state, message string) Response {
	return Response{OK: true, State: state, Message: message}
}

func Failure(state, format string, args ...any) Response {
	return Response{OK: false, State: state, Error: fmt.Sprintf(format, args...)}
}
