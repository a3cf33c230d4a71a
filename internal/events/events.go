// Package events defines the closed set of AG-UI protocol events exchanged between an
// agent and its caller.
//
// Every event carries a "type" discriminant and an optional unix-millisecond
// timestamp. Consumers route on Type() and never on the Go type of the value, so a
// switch over Type() with a default branch is the expected way to handle events.
package events

// EventType is the discriminant carried in the "type" field of every event
type EventType string

const (
	EventTypeRunStarted         EventType = "RUN_STARTED"
	EventTypeRunFinished        EventType = "RUN_FINISHED"
	EventTypeRunError           EventType = "RUN_ERROR"
	EventTypeStepStarted        EventType = "STEP_STARTED"
	EventTypeStepFinished       EventType = "STEP_FINISHED"
	EventTypeTextMessageStart   EventType = "TEXT_MESSAGE_START"
	EventTypeTextMessageContent EventType = "TEXT_MESSAGE_CONTENT"
	EventTypeTextMessageEnd     EventType = "TEXT_MESSAGE_END"
	EventTypeToolCallStart      EventType = "TOOL_CALL_START"
	EventTypeToolCallArgs       EventType = "TOOL_CALL_ARGS"
	EventTypeToolCallEnd        EventType = "TOOL_CALL_END"
	EventTypeToolCallResult     EventType = "TOOL_CALL_RESULT"
	EventTypeStateSnapshot      EventType = "STATE_SNAPSHOT"
	EventTypeStateDelta         EventType = "STATE_DELTA"
	EventTypeMessagesSnapshot   EventType = "MESSAGES_SNAPSHOT"
	EventTypeRaw                EventType = "RAW"
	EventTypeCustom             EventType = "CUSTOM"
)

// Types lists every event type in protocol order
func Types() []EventType {
	return []EventType{
		EventTypeRunStarted,
		EventTypeRunFinished,
		EventTypeRunError,
		EventTypeStepStarted,
		EventTypeStepFinished,
		EventTypeTextMessageStart,
		EventTypeTextMessageContent,
		EventTypeTextMessageEnd,
		EventTypeToolCallStart,
		EventTypeToolCallArgs,
		EventTypeToolCallEnd,
		EventTypeToolCallResult,
		EventTypeStateSnapshot,
		EventTypeStateDelta,
		EventTypeMessagesSnapshot,
		EventTypeRaw,
		EventTypeCustom,
	}
}

// Known reports whether t is part of the event set
func (t EventType) Known() bool {
	for _, k := range Types() {
		if k == t {
			return true
		}
	}
	return false
}

// IsTerminal reports whether t ends a run
func IsTerminal(t EventType) bool {
	return t == EventTypeRunFinished || t == EventTypeRunError
}

// Event is implemented by every protocol event. The set is closed: only types in this
// package satisfy it.
type Event interface {
	Type() EventType
	Timestamp() int64
	Validate() error
	event()
}

// BaseEvent holds the fields shared by every event
type BaseEvent struct {
	EventType   EventType `json:"type"`
	TimestampMs int64     `json:"timestamp,omitempty"`
}

// Type returns the event discriminant
func (b *BaseEvent) Type() EventType { return b.EventType }

// Timestamp returns the unix millisecond timestamp, or zero when unset
func (b *BaseEvent) Timestamp() int64 { return b.TimestampMs }

func (*BaseEvent) event() {}

func (b *BaseEvent) check(want EventType) error {
	if b.EventType != want {
		return &ValidationError{Type: want, Field: "type", Reason: "is " + string(b.EventType)}
	}
	return nil
}

func newBase(t EventType, o *options) BaseEvent {
	return BaseEvent{EventType: t, TimestampMs: o.timestamp()}
}
