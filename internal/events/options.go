package events

import (
	"time"

	"agui-stream/internal/domain"
)

// Option configures optional fields of an event at construction time.
// Options that do not apply to the constructed kind are ignored.
type Option func(*options)

type options struct {
	ts              int64
	noTimestamp     bool
	role            domain.Role
	runID           string
	parentRunID     string
	code            string
	parentMessageID string
	source          string
	result          any
	value           any
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) timestamp() int64 {
	if o.noTimestamp {
		return 0
	}
	if o.ts != 0 {
		return o.ts
	}
	return time.Now().UnixMilli()
}

// WithTimestamp sets an explicit unix millisecond timestamp
func WithTimestamp(ms int64) Option {
	return func(o *options) { o.ts = ms }
}

// WithoutTimestamp leaves the timestamp unset
func WithoutTimestamp() Option {
	return func(o *options) { o.noTimestamp = true }
}

// WithRole sets the role of a text message or tool result
func WithRole(role domain.Role) Option {
	return func(o *options) { o.role = role }
}

// WithRunID attaches a run id to a RUN_ERROR event
func WithRunID(runID string) Option {
	return func(o *options) { o.runID = runID }
}

// WithParentRunID links a RUN_STARTED event to the run that spawned it
func WithParentRunID(parentRunID string) Option {
	return func(o *options) { o.parentRunID = parentRunID }
}

// WithCode attaches a machine readable code to a RUN_ERROR event
func WithCode(code string) Option {
	return func(o *options) { o.code = code }
}

// WithParentMessageID links a tool call to the assistant message that issued it
func WithParentMessageID(messageID string) Option {
	return func(o *options) { o.parentMessageID = messageID }
}

// WithSource names the origin of a RAW event
func WithSource(source string) Option {
	return func(o *options) { o.source = source }
}

// WithResult attaches a result payload to a RUN_FINISHED event
func WithResult(result any) Option {
	return func(o *options) { o.result = result }
}

// WithValue attaches a payload to a CUSTOM event
func WithValue(value any) Option {
	return func(o *options) { o.value = value }
}
