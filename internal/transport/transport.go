// Package transport holds what the SSE and Connect handlers share
package transport

import (
	"context"
	"errors"

	"agui-stream/internal/events"
)

// EventSender writes the events of one run to a client
type EventSender interface {
	SendEvent(ev events.Event) error
	SendRunError(runID string, err error) error
}

// RunError builds the RUN_ERROR event a sender writes for err
func RunError(runID string, err error) events.Event {
	msg := "run failed"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return events.Must(events.NewRunErrorEvent(msg, events.WithRunID(runID), events.WithCode(Code(err))))
}

// Codes of RUN_ERROR events written by the server
const (
	CodeAgent     = "AGENT_ERROR"
	CodeTimeout   = "TIMEOUT"
	CodeCancelled = "CANCELLED"
)

// Code returns the RUN_ERROR code for err. Errors with an ErrorCode method choose their
// own code.
func Code(err error) string {
	var coded interface{ ErrorCode() string }
	switch {
	case errors.As(err, &coded):
		return coded.ErrorCode()
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	default:
		return CodeAgent
	}
}
