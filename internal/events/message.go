package events

import "agui-stream/internal/domain"

// TextMessageStartEvent opens a streamed text message
type TextMessageStartEvent struct {
	BaseEvent
	MessageID string      `json:"messageId"`
	Role      domain.Role `json:"role"`
}

// NewTextMessageStartEvent creates a TEXT_MESSAGE_START event. The role defaults to
// assistant.
func NewTextMessageStartEvent(messageID string, opts ...Option) (*TextMessageStartEvent, error) {
	o := buildOptions(opts)
	role := o.role
	if role == "" {
		role = domain.RoleAssistant
	}
	e := &TextMessageStartEvent{
		BaseEvent: newBase(EventTypeTextMessageStart, o),
		MessageID: messageID,
		Role:      role,
	}
	return e, e.Validate()
}

func (e *TextMessageStartEvent) Validate() error {
	if err := firstErr(
		e.check(EventTypeTextMessageStart),
		required(EventTypeTextMessageStart, "messageId", e.MessageID),
		required(EventTypeTextMessageStart, "role", string(e.Role)),
	); err != nil {
		return err
	}
	if !e.Role.Valid() {
		return &ValidationError{Type: EventTypeTextMessageStart, Field: "role", Reason: "is not a known role"}
	}
	return nil
}

// TextMessageContentEvent carries one fragment of a text message
type TextMessageContentEvent struct {
	BaseEvent
	MessageID string `json:"messageId"`
	Delta     string `json:"delta"`
}

// NewTextMessageContentEvent creates a TEXT_MESSAGE_CONTENT event. The delta must not be
// empty.
func NewTextMessageContentEvent(messageID, delta string, opts ...Option) (*TextMessageContentEvent, error) {
	e := &TextMessageContentEvent{
		BaseEvent: newBase(EventTypeTextMessageContent, buildOptions(opts)),
		MessageID: messageID,
		Delta:     delta,
	}
	return e, e.Validate()
}

func (e *TextMessageContentEvent) Validate() error {
	return firstErr(
		e.check(EventTypeTextMessageContent),
		required(EventTypeTextMessageContent, "messageId", e.MessageID),
		required(EventTypeTextMessageContent, "delta", e.Delta),
	)
}

// TextMessageEndEvent closes a streamed text message
type TextMessageEndEvent struct {
	BaseEvent
	MessageID string `json:"messageId"`
}

// NewTextMessageEndEvent creates a TEXT_MESSAGE_END event
func NewTextMessageEndEvent(messageID string, opts ...Option) (*TextMessageEndEvent, error) {
	e := &TextMessageEndEvent{BaseEvent: newBase(EventTypeTextMessageEnd, buildOptions(opts)), MessageID: messageID}
	return e, e.Validate()
}

func (e *TextMessageEndEvent) Validate() error {
	return firstErr(
		e.check(EventTypeTextMessageEnd),
		required(EventTypeTextMessageEnd, "messageId", e.MessageID),
	)
}
