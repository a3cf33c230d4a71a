package client

import (
	"context"
	"errors"
	"fmt"

	"agui-stream/internal/dispatch"
	"agui-stream/internal/encoding"
	"agui-stream/internal/events"
)

// Codes carried by RUN_ERROR events the agent synthesizes
const (
	CodeTransport = "TRANSPORT_ERROR"
	CodeDecode    = "DECODE_ERROR"
	CodeProtocol  = "PROTOCOL_ERROR"
	CodeHandler   = "HANDLER_ERROR"
	CodeCancelled = "CANCELLED"
)

var (
	// ErrInvalidState is matched by every *InvalidStateError
	ErrInvalidState = errors.New("invalid agent state")
	// ErrCancelTimeout is returned by Cancel when the run did not stop within the grace period
	ErrCancelTimeout = errors.New("run did not stop within the cancel grace period")
)

// InvalidStateError is returned when an operation is not allowed in the agent's status
type InvalidStateError struct {
	Op     string
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("%s: agent is %s", e.Op, e.Status)
}

func (e *InvalidStateError) Is(target error) bool { return target == ErrInvalidState }

// TransportError reports a failure to open or read the event stream
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports an event that breaks the ordering rules of a run
type ProtocolError struct {
	Event  events.EventType
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	msg := "protocol violation"
	if e.Event != "" {
		msg += " at " + string(e.Event)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// errorCode maps a run failure to the code of the synthesized RUN_ERROR
func errorCode(err error) string {
	var (
		herr *dispatch.HandlerError
		perr *ProtocolError
	)
	switch {
	case errors.As(err, &herr):
		return CodeHandler
	case errors.As(err, &perr):
		return CodeProtocol
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case encoding.IsDecodeError(err):
		return CodeDecode
	default:
		return CodeTransport
	}
}
