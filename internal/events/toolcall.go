package events

import "agui-stream/internal/domain"

// ToolCallStartEvent opens a streamed tool call
type ToolCallStartEvent struct {
	BaseEvent
	ToolCallID      string `json:"toolCallId"`
	ToolCallName    string `json:"toolCallName"`
	ParentMessageID string `json:"parentMessageId,omitempty"`
}

// NewToolCallStartEvent creates a TOOL_CALL_START event
func NewToolCallStartEvent(toolCallID, toolCallName string, opts ...Option) (*ToolCallStartEvent, error) {
	o := buildOptions(opts)
	e := &ToolCallStartEvent{
		BaseEvent:       newBase(EventTypeToolCallStart, o),
		ToolCallID:      toolCallID,
		ToolCallName:    toolCallName,
		ParentMessageID: o.parentMessageID,
	}
	return e, e.Validate()
}

func (e *ToolCallStartEvent) Validate() error {
	return firstErr(
		e.check(EventTypeToolCallStart),
		required(EventTypeToolCallStart, "toolCallId", e.ToolCallID),
		required(EventTypeToolCallStart, "toolCallName", e.ToolCallName),
	)
}

// ToolCallArgsEvent carries one fragment of a tool call's argument text
type ToolCallArgsEvent struct {
	BaseEvent
	ToolCallID string `json:"toolCallId"`
	Delta      string `json:"delta"`
}

// NewToolCallArgsEvent creates a TOOL_CALL_ARGS event
func NewToolCallArgsEvent(toolCallID, delta string, opts ...Option) (*ToolCallArgsEvent, error) {
	e := &ToolCallArgsEvent{
		BaseEvent:  newBase(EventTypeToolCallArgs, buildOptions(opts)),
		ToolCallID: toolCallID,
		Delta:      delta,
	}
	return e, e.Validate()
}

func (e *ToolCallArgsEvent) Validate() error {
	return firstErr(
		e.check(EventTypeToolCallArgs),
		required(EventTypeToolCallArgs, "toolCallId", e.ToolCallID),
	)
}

// ToolCallEndEvent closes a streamed tool call
type ToolCallEndEvent struct {
	BaseEvent
	ToolCallID string `json:"toolCallId"`
}

// NewToolCallEndEvent creates a TOOL_CALL_END event
func NewToolCallEndEvent(toolCallID string, opts ...Option) (*ToolCallEndEvent, error) {
	e := &ToolCallEndEvent{BaseEvent: newBase(EventTypeToolCallEnd, buildOptions(opts)), ToolCallID: toolCallID}
	return e, e.Validate()
}

func (e *ToolCallEndEvent) Validate() error {
	return firstErr(
		e.check(EventTypeToolCallEnd),
		required(EventTypeToolCallEnd, "toolCallId", e.ToolCallID),
	)
}

// ToolCallResultEvent carries the output of an executed tool call
type ToolCallResultEvent struct {
	BaseEvent
	MessageID  string      `json:"messageId"`
	ToolCallID string      `json:"toolCallId"`
	Content    string      `json:"content"`
	Role       domain.Role `json:"role,omitempty"`
}

// NewToolCallResultEvent creates a TOOL_CALL_RESULT event
func NewToolCallResultEvent(messageID, toolCallID, content string, opts ...Option) (*ToolCallResultEvent, error) {
	o := buildOptions(opts)
	e := &ToolCallResultEvent{
		BaseEvent:  newBase(EventTypeToolCallResult, o),
		MessageID:  messageID,
		ToolCallID: toolCallID,
		Content:    content,
		Role:       o.role,
	}
	return e, e.Validate()
}

func (e *ToolCallResultEvent) Validate() error {
	if err := firstErr(
		e.check(EventTypeToolCallResult),
		required(EventTypeToolCallResult, "messageId", e.MessageID),
		required(EventTypeToolCallResult, "toolCallId", e.ToolCallID),
	); err != nil {
		return err
	}
	if e.Role != "" && e.Role != domain.RoleTool {
		return &ValidationError{Type: EventTypeToolCallResult, Field: "role", Reason: "must be tool"}
	}
	return nil
}
