// Package state folds AG-UI events into the per-run state seen by subscribers.
//
// RunState is a value. Apply and Merge return a new RunState and never modify the
// messages or JSON document of the state they were given, so a handler holding an older
// RunState keeps a consistent view.
package state

import (
	"agui-stream/internal/domain"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// RunStatus is the lifecycle position recorded by the reducer
type RunStatus string

const (
	StatusPending  RunStatus = ""
	StatusRunning  RunStatus = "running"
	StatusFinished RunStatus = "finished"
	StatusErrored  RunStatus = "errored"
)

// RunState is the state of one run built by folding its events
type RunState struct {
	ThreadID string
	RunID    string
	Messages []domain.Message
	// State is the agent's custom state as a JSON document
	State json.RawMessage

	OpenMessageID  string
	OpenToolCallID string

	Status    RunStatus
	Result    any
	ErrorCode string
	ErrorText string
}

// New seeds a RunState from the input of a run
func New(input domain.RunInput) (RunState, error) {
	s := RunState{
		ThreadID: input.ThreadID,
		RunID:    input.RunID,
		Messages: domain.CloneMessages(input.Messages),
		State:    json.RawMessage(`{}`),
	}
	if len(input.State) > 0 {
		raw, err := json.Marshal(input.State)
		if err != nil {
			return RunState{}, err
		}
		s.State = raw
	}
	return s, nil
}

// Clone returns a deep copy of s
func (s RunState) Clone() RunState {
	c := s
	c.Messages = domain.CloneMessages(s.Messages)
	if s.State != nil {
		c.State = append(json.RawMessage(nil), s.State...)
	}
	return c
}

// Value reads the custom state with a gjson path such as "todos.#.title"
func (s RunState) Value(path string) gjson.Result {
	return gjson.GetBytes(s.document(), path)
}

// Decode unmarshals the custom state into v
func (s RunState) Decode(v any) error {
	return json.Unmarshal(s.document(), v)
}

func (s RunState) document() []byte {
	if len(s.State) == 0 {
		return []byte(`{}`)
	}
	return s.State
}

// Message returns the message with id
func (s RunState) Message(id string) (domain.Message, bool) {
	if i := s.messageIndex(id); i >= 0 {
		return s.Messages[i], true
	}
	return domain.Message{}, false
}

// ToolCall returns the tool call with id from any assistant message
func (s RunState) ToolCall(id string) (domain.ToolCall, bool) {
	for _, m := range s.Messages {
		for _, tc := range m.ToolCalls {
			if tc.ID == id {
				return tc, true
			}
		}
	}
	return domain.ToolCall{}, false
}

// LastMessage returns the newest message
func (s RunState) LastMessage() (domain.Message, bool) {
	if len(s.Messages) == 0 {
		return domain.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

func (s RunState) messageIndex(id string) int {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}
