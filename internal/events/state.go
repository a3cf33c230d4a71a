package events

import (
	"strings"

	"agui-stream/internal/domain"
)

// Patch operations understood by STATE_DELTA (RFC 6902)
const (
	PatchAdd     = "add"
	PatchRemove  = "remove"
	PatchReplace = "replace"
	PatchMove    = "move"
	PatchCopy    = "copy"
	PatchTest    = "test"
)

// PatchOperation is one RFC 6902 JSON Patch operation
type PatchOperation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
	From  string `json:"from,omitempty"`
}

// Validate checks the operation name and pointer syntax
func (p PatchOperation) Validate() error {
	switch p.Op {
	case PatchAdd, PatchRemove, PatchReplace, PatchTest:
	case PatchMove, PatchCopy:
		if !validPointer(p.From) {
			return &ValidationError{Type: EventTypeStateDelta, Field: "from", Reason: "must be a JSON pointer"}
		}
	default:
		return &ValidationError{Type: EventTypeStateDelta, Field: "op", Reason: "has unknown operation " + p.Op}
	}
	if !validPointer(p.Path) {
		return &ValidationError{Type: EventTypeStateDelta, Field: "path", Reason: "must be a JSON pointer"}
	}
	return nil
}

func validPointer(p string) bool {
	return p == "" || strings.HasPrefix(p, "/")
}

// StateSnapshotEvent replaces the agent state
type StateSnapshotEvent struct {
	BaseEvent
	Snapshot any `json:"snapshot"`
}

// NewStateSnapshotEvent creates a STATE_SNAPSHOT event
func NewStateSnapshotEvent(snapshot any, opts ...Option) (*StateSnapshotEvent, error) {
	e := &StateSnapshotEvent{BaseEvent: newBase(EventTypeStateSnapshot, buildOptions(opts)), Snapshot: snapshot}
	return e, e.Validate()
}

func (e *StateSnapshotEvent) Validate() error {
	if err := e.check(EventTypeStateSnapshot); err != nil {
		return err
	}
	if e.Snapshot == nil {
		return &ValidationError{Type: EventTypeStateSnapshot, Field: "snapshot", Reason: "is required"}
	}
	return nil
}

// StateDeltaEvent patches the agent state
type StateDeltaEvent struct {
	BaseEvent
	Delta []PatchOperation `json:"delta"`
}

// NewStateDeltaEvent creates a STATE_DELTA event
func NewStateDeltaEvent(delta []PatchOperation, opts ...Option) (*StateDeltaEvent, error) {
	e := &StateDeltaEvent{BaseEvent: newBase(EventTypeStateDelta, buildOptions(opts)), Delta: delta}
	return e, e.Validate()
}

func (e *StateDeltaEvent) Validate() error {
	if err := e.check(EventTypeStateDelta); err != nil {
		return err
	}
	if e.Delta == nil {
		return &ValidationError{Type: EventTypeStateDelta, Field: "delta", Reason: "is required"}
	}
	for _, op := range e.Delta {
		if err := op.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// MessagesSnapshotEvent replaces the conversation history
type MessagesSnapshotEvent struct {
	BaseEvent
	Messages []domain.Message `json:"messages"`
}

// NewMessagesSnapshotEvent creates a MESSAGES_SNAPSHOT event
func NewMessagesSnapshotEvent(messages []domain.Message, opts ...Option) (*MessagesSnapshotEvent, error) {
	e := &MessagesSnapshotEvent{BaseEvent: newBase(EventTypeMessagesSnapshot, buildOptions(opts)), Messages: messages}
	return e, e.Validate()
}

func (e *MessagesSnapshotEvent) Validate() error {
	if err := e.check(EventTypeMessagesSnapshot); err != nil {
		return err
	}
	if e.Messages == nil {
		return &ValidationError{Type: EventTypeMessagesSnapshot, Field: "messages", Reason: "is required"}
	}
	for _, m := range e.Messages {
		if m.ID == "" || !m.Role.Valid() {
			return &ValidationError{Type: EventTypeMessagesSnapshot, Field: "messages", Reason: "contains a message without id or with an unknown role"}
		}
	}
	return nil
}
