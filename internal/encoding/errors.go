package encoding

import (
	"errors"
	"fmt"

	"agui-stream/internal/events"
)

var (
	// ErrMalformedFrame is matched by decode errors for frames that are not valid payloads
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownEventType is matched by decode errors for frames with an unknown "type"
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrMissingField is matched by decode errors for frames missing a required field
	ErrMissingField = errors.New("missing required field")
)

// DecodeError is returned when a frame cannot be turned into an event.
type DecodeError struct {
	Type  events.EventType
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	msg := "decode"
	if e.Type != "" {
		msg += " " + string(e.Type)
	}
	msg += ": " + e.Err.Error()
	if e.Field != "" {
		msg += " (field " + e.Field + ")"
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) *DecodeError {
	return &DecodeError{Err: fmt.Errorf("%w: "+format, append([]any{ErrMalformedFrame}, args...)...)}
}
