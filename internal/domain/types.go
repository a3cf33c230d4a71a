package domain

import (
	"encoding/json"
	"slices"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleTool      Role = "tool"
	RoleFunction  Role = "function"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem, RoleDeveloper, RoleTool, RoleFunction:
		return true
	}
	return false
}

// FunctionCall is the name and accumulated argument text of a tool call
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a function invocation requested by an assistant message
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// Message is a role-tagged entry of the conversation history
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
}

// Clone returns a copy that shares no slices with m
func (m Message) Clone() Message {
	m.ToolCalls = slices.Clone(m.ToolCalls)
	return m
}

// Tool describes a tool the caller makes available to the agent
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ContextItem is a piece of caller supplied context
type ContextItem struct {
	Description string `json:"description"`
	Value       string `json:"value"`
}

// RunInput represents the AG-UI protocol input format
type RunInput struct {
	ThreadID       string          `json:"threadId"`
	RunID          string          `json:"runId"`
	ParentRunID    string          `json:"parentRunId,omitempty"`
	State          map[string]any  `json:"state,omitempty"`
	Messages       []Message       `json:"messages"`
	Tools          []Tool          `json:"tools"`
	Context        []ContextItem   `json:"context"`
	ForwardedProps json.RawMessage `json:"forwardedProps,omitempty"`
}

// Clone returns a deep copy of the message, tool and context lists.
// State values are copied one level deep.
func (in RunInput) Clone() RunInput {
	out := in
	out.Messages = CloneMessages(in.Messages)
	out.Tools = slices.Clone(in.Tools)
	out.Context = slices.Clone(in.Context)
	out.ForwardedProps = slices.Clone(in.ForwardedProps)
	if in.State != nil {
		out.State = make(map[string]any, len(in.State))
		for k, v := range in.State {
			out.State[k] = v
		}
	}
	return out
}

// LastUserMessage returns the content of the most recent user message
func (in RunInput) LastUserMessage() (string, bool) {
	for i := len(in.Messages) - 1; i >= 0; i-- {
		msg := in.Messages[i]
		if msg.Role == RoleUser && msg.Content != "" {
			return msg.Content, true
		}
	}
	return "", false
}

// CloneMessages deep copies a message list
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
