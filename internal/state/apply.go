package state

import (
	"errors"
	"fmt"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	json "github.com/goccy/go-json"
)

var (
	// ErrUnknownMessage is returned for text events referencing no open message
	ErrUnknownMessage = errors.New("unknown or closed message")
	// ErrUnknownToolCall is returned for tool call events referencing no open tool call
	ErrUnknownToolCall = errors.New("unknown or closed tool call")
	// ErrDuplicateMessage is returned when a message start reuses the id of a known message
	ErrDuplicateMessage = errors.New("message id already in use")
)

// Mutation is a change proposed by a subscriber. Non-nil Messages and State replace the
// current values, Patch is applied to the custom state afterwards.
type Mutation struct {
	Messages []domain.Message
	State    json.RawMessage
	Patch    []events.PatchOperation
	// StopPropagation skips the remaining subscribers and the default reducer for the
	// event being dispatched
	StopPropagation bool
}

// IsZero reports whether m changes nothing
func (m Mutation) IsZero() bool {
	return m.Messages == nil && m.State == nil && len(m.Patch) == 0 && !m.StopPropagation
}

// Merge applies m to s
func Merge(s RunState, m Mutation) (RunState, error) {
	if m.Messages != nil {
		s.Messages = domain.CloneMessages(m.Messages)
	}
	if m.State != nil {
		if !json.Valid(m.State) {
			return s, errors.New("mutation state is not valid JSON")
		}
		s.State = append(json.RawMessage(nil), m.State...)
	}
	if len(m.Patch) > 0 {
		patched, err := ApplyPatch(s.State, m.Patch)
		if err != nil {
			return s, err
		}
		s.State = patched
	}
	return s, nil
}

// Apply folds ev into s. Events that break message or tool call pairing return an error
// and leave s as it was.
func Apply(s RunState, ev events.Event) (RunState, error) {
	switch ev.Type() {
	case events.EventTypeRunStarted:
		e := ev.(*events.RunStartedEvent)
		s.ThreadID, s.RunID = e.ThreadID, e.RunID
		s.Status = StatusRunning
	case events.EventTypeRunFinished:
		s.Status = StatusFinished
		s.Result = ev.(*events.RunFinishedEvent).Result
		s.OpenMessageID, s.OpenToolCallID = "", ""
	case events.EventTypeRunError:
		e := ev.(*events.RunErrorEvent)
		s.Status = StatusErrored
		s.ErrorText, s.ErrorCode = e.Message, e.Code
		s.OpenMessageID, s.OpenToolCallID = "", ""
	case events.EventTypeStepStarted, events.EventTypeStepFinished:

	case events.EventTypeTextMessageStart:
		e := ev.(*events.TextMessageStartEvent)
		if s.messageIndex(e.MessageID) >= 0 {
			return s, fmt.Errorf("%s %q: %w", e.Type(), e.MessageID, ErrDuplicateMessage)
		}
		s.Messages = appendMessage(s.Messages, domain.Message{ID: e.MessageID, Role: e.Role})
		s.OpenMessageID = e.MessageID
	case events.EventTypeTextMessageContent:
		e := ev.(*events.TextMessageContentEvent)
		i := s.openMessage(e.MessageID)
		if i < 0 {
			return s, fmt.Errorf("%s %q: %w", e.Type(), e.MessageID, ErrUnknownMessage)
		}
		s.Messages = updateMessage(s.Messages, i, func(m *domain.Message) {
			m.Content += e.Delta
		})
	case events.EventTypeTextMessageEnd:
		e := ev.(*events.TextMessageEndEvent)
		if s.openMessage(e.MessageID) < 0 {
			return s, fmt.Errorf("%s %q: %w", e.Type(), e.MessageID, ErrUnknownMessage)
		}
		s.OpenMessageID = ""

	case events.EventTypeToolCallStart:
		return startToolCall(s, ev.(*events.ToolCallStartEvent)), nil
	case events.EventTypeToolCallArgs:
		e := ev.(*events.ToolCallArgsEvent)
		if e.ToolCallID == "" || e.ToolCallID != s.OpenToolCallID {
			return s, fmt.Errorf("%s %q: %w", e.Type(), e.ToolCallID, ErrUnknownToolCall)
		}
		s.Messages = updateToolCall(s.Messages, e.ToolCallID, func(tc *domain.ToolCall) {
			tc.Function.Arguments += e.Delta
		})
	case events.EventTypeToolCallEnd:
		e := ev.(*events.ToolCallEndEvent)
		if e.ToolCallID == "" || e.ToolCallID != s.OpenToolCallID {
			return s, fmt.Errorf("%s %q: %w", e.Type(), e.ToolCallID, ErrUnknownToolCall)
		}
		s.OpenToolCallID = ""
	case events.EventTypeToolCallResult:
		e := ev.(*events.ToolCallResultEvent)
		s.Messages = appendMessage(s.Messages, domain.Message{
			ID:         e.MessageID,
			Role:       domain.RoleTool,
			Content:    e.Content,
			ToolCallID: e.ToolCallID,
		})

	case events.EventTypeStateSnapshot:
		raw, err := json.Marshal(ev.(*events.StateSnapshotEvent).Snapshot)
		if err != nil {
			return s, fmt.Errorf("%s: %w", ev.Type(), err)
		}
		s.State = raw
	case events.EventTypeStateDelta:
		patched, err := ApplyPatch(s.State, ev.(*events.StateDeltaEvent).Delta)
		if err != nil {
			return s, fmt.Errorf("%s: %w", ev.Type(), err)
		}
		s.State = patched
	case events.EventTypeMessagesSnapshot:
		s.Messages = domain.CloneMessages(ev.(*events.MessagesSnapshotEvent).Messages)
		if s.OpenMessageID != "" && s.messageIndex(s.OpenMessageID) < 0 {
			s.OpenMessageID = ""
		}

	case events.EventTypeRaw, events.EventTypeCustom:

	default:
		return s, fmt.Errorf("unsupported event type %q", ev.Type())
	}
	return s, nil
}

func (s RunState) openMessage(id string) int {
	if id == "" || id != s.OpenMessageID {
		return -1
	}
	return s.messageIndex(id)
}

// startToolCall attaches the call to its parent assistant message, or to a new assistant
// message when the parent is unknown.
func startToolCall(s RunState, e *events.ToolCallStartEvent) RunState {
	tc := domain.ToolCall{
		ID:       e.ToolCallID,
		Type:     "function",
		Function: domain.FunctionCall{Name: e.ToolCallName},
	}
	parent := e.ParentMessageID
	if i := s.messageIndex(parent); parent != "" && i >= 0 && s.Messages[i].Role == domain.RoleAssistant {
		s.Messages = updateMessage(s.Messages, i, func(m *domain.Message) {
			m.ToolCalls = append(m.ToolCalls, tc)
		})
	} else {
		id := parent
		if id == "" {
			id = e.ToolCallID
		}
		s.Messages = appendMessage(s.Messages, domain.Message{
			ID:        id,
			Role:      domain.RoleAssistant,
			ToolCalls: []domain.ToolCall{tc},
		})
	}
	s.OpenToolCallID = e.ToolCallID
	return s
}

// appendMessage returns a new slice so earlier states never share a backing array with
// later ones.
func appendMessage(msgs []domain.Message, m domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs), len(msgs)+1)
	copy(out, msgs)
	return append(out, m)
}

func updateMessage(msgs []domain.Message, i int, fn func(*domain.Message)) []domain.Message {
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	m := out[i].Clone()
	fn(&m)
	out[i] = m
	return out
}

func updateToolCall(msgs []domain.Message, id string, fn func(*domain.ToolCall)) []domain.Message {
	for i := len(msgs) - 1; i >= 0; i-- {
		for j := range msgs[i].ToolCalls {
			if msgs[i].ToolCalls[j].ID == id {
				return updateMessage(msgs, i, func(m *domain.Message) {
					fn(&m.ToolCalls[j])
				})
			}
		}
	}
	return msgs
}
