package encoding

import (
	"errors"
	"fmt"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// requiredFields lists, per event type, the JSON fields a frame must carry before it is
// unmarshalled. Validate covers emptiness, this covers absence.
var requiredFields = map[events.EventType][]string{
	events.EventTypeRunStarted:         {"threadId", "runId"},
	events.EventTypeRunFinished:        {"threadId", "runId"},
	events.EventTypeRunError:           {"message"},
	events.EventTypeStepStarted:        {"stepName"},
	events.EventTypeStepFinished:       {"stepName"},
	events.EventTypeTextMessageStart:   {"messageId"},
	events.EventTypeTextMessageContent: {"messageId", "delta"},
	events.EventTypeTextMessageEnd:     {"messageId"},
	events.EventTypeToolCallStart:      {"toolCallId", "toolCallName"},
	events.EventTypeToolCallArgs:       {"toolCallId", "delta"},
	events.EventTypeToolCallEnd:        {"toolCallId"},
	events.EventTypeToolCallResult:     {"messageId", "toolCallId", "content"},
	events.EventTypeStateSnapshot:      {"snapshot"},
	events.EventTypeStateDelta:         {"delta"},
	events.EventTypeMessagesSnapshot:   {"messages"},
	events.EventTypeRaw:                {"event"},
	events.EventTypeCustom:             {"name"},
}

// newEvent returns an empty value of the concrete type for t
func newEvent(t events.EventType) (events.Event, error) {
	switch t {
	case events.EventTypeRunStarted:
		return &events.RunStartedEvent{}, nil
	case events.EventTypeRunFinished:
		return &events.RunFinishedEvent{}, nil
	case events.EventTypeRunError:
		return &events.RunErrorEvent{}, nil
	case events.EventTypeStepStarted:
		return &events.StepStartedEvent{}, nil
	case events.EventTypeStepFinished:
		return &events.StepFinishedEvent{}, nil
	case events.EventTypeTextMessageStart:
		return &events.TextMessageStartEvent{}, nil
	case events.EventTypeTextMessageContent:
		return &events.TextMessageContentEvent{}, nil
	case events.EventTypeTextMessageEnd:
		return &events.TextMessageEndEvent{}, nil
	case events.EventTypeToolCallStart:
		return &events.ToolCallStartEvent{}, nil
	case events.EventTypeToolCallArgs:
		return &events.ToolCallArgsEvent{}, nil
	case events.EventTypeToolCallEnd:
		return &events.ToolCallEndEvent{}, nil
	case events.EventTypeToolCallResult:
		return &events.ToolCallResultEvent{}, nil
	case events.EventTypeStateSnapshot:
		return &events.StateSnapshotEvent{}, nil
	case events.EventTypeStateDelta:
		return &events.StateDeltaEvent{}, nil
	case events.EventTypeMessagesSnapshot:
		return &events.MessagesSnapshotEvent{}, nil
	case events.EventTypeRaw:
		return &events.RawEvent{}, nil
	case events.EventTypeCustom:
		return &events.CustomEvent{}, nil
	default:
		return nil, &DecodeError{Type: t, Err: ErrUnknownEventType}
	}
}

// EncodeJSON marshals an event to its JSON object form
func EncodeJSON(ev events.Event) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("encode: nil event")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	return data, nil
}

// DecodeJSON parses one JSON event object. The "type" field selects the concrete
// event, required fields are checked for presence and the result is validated.
func DecodeJSON(data []byte) (events.Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, malformed("invalid json")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, malformed("expected a JSON object")
	}

	typ := root.Get("type")
	if !typ.Exists() || typ.Type != gjson.String {
		return nil, &DecodeError{Field: "type", Err: ErrMissingField}
	}
	t := events.EventType(typ.String())

	ev, err := newEvent(t)
	if err != nil {
		return nil, err
	}
	for _, field := range requiredFields[t] {
		if !root.Get(field).Exists() {
			return nil, &DecodeError{Type: t, Field: field, Err: ErrMissingField}
		}
	}

	if err := json.Unmarshal(data, ev); err != nil {
		return nil, &DecodeError{Type: t, Err: fmt.Errorf("%w: %v", ErrMalformedFrame, err)}
	}

	// older producers omit the role of a text message
	if start, ok := ev.(*events.TextMessageStartEvent); ok && start.Role == "" {
		start.Role = domain.RoleAssistant
	}

	if err := ev.Validate(); err != nil {
		var field string
		var verr *events.ValidationError
		if errors.As(err, &verr) {
			field = verr.Field
		}
		return nil, &DecodeError{Type: t, Field: field, Err: fmt.Errorf("%w: %w", ErrMissingField, err)}
	}
	return ev, nil
}
