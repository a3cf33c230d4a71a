package client

import (
	"agui-stream/internal/events"
)

// verifier enforces the ordering rules of a run on the consumer side. It also applies
// the implicit close rule: starting a tool call closes an open text message, and
// starting a text message closes an open tool call. The closing events are synthesized
// and returned ahead of the event that caused them.
type verifier struct {
	started     bool
	ended       bool
	openMessage string
	openTool    string
}

// admit returns the events to deliver for ev, in order
func (v *verifier) admit(ev events.Event) ([]events.Event, error) {
	t := ev.Type()
	if v.ended {
		return nil, &ProtocolError{Event: t, Reason: "event after the terminal event"}
	}
	if !v.started {
		switch t {
		case events.EventTypeRunStarted:
			v.started = true
			return []events.Event{ev}, nil
		case events.EventTypeRunError:
			v.ended = true
			return []events.Event{ev}, nil
		default:
			return nil, &ProtocolError{Event: t, Reason: "first event must be RUN_STARTED"}
		}
	}

	var out []events.Event
	switch t {
	case events.EventTypeRunStarted:
		return nil, &ProtocolError{Event: t, Reason: "run already started"}

	case events.EventTypeRunFinished:
		out = append(out, v.closeMessage()...)
		out = append(out, v.closeTool()...)
		v.ended = true
	case events.EventTypeRunError:
		v.openMessage, v.openTool = "", ""
		v.ended = true

	case events.EventTypeTextMessageStart:
		out = append(out, v.closeTool()...)
		out = append(out, v.closeMessage()...)
		v.openMessage = ev.(*events.TextMessageStartEvent).MessageID
	case events.EventTypeTextMessageContent:
		if id := ev.(*events.TextMessageContentEvent).MessageID; id != v.openMessage {
			return nil, &ProtocolError{Event: t, Reason: "message " + id + " is not open"}
		}
	case events.EventTypeTextMessageEnd:
		if id := ev.(*events.TextMessageEndEvent).MessageID; id != v.openMessage {
			return nil, &ProtocolError{Event: t, Reason: "message " + id + " is not open"}
		}
		v.openMessage = ""

	case events.EventTypeToolCallStart:
		out = append(out, v.closeMessage()...)
		out = append(out, v.closeTool()...)
		v.openTool = ev.(*events.ToolCallStartEvent).ToolCallID
	case events.EventTypeToolCallArgs:
		if id := ev.(*events.ToolCallArgsEvent).ToolCallID; id != v.openTool {
			return nil, &ProtocolError{Event: t, Reason: "tool call " + id + " is not open"}
		}
	case events.EventTypeToolCallEnd:
		if id := ev.(*events.ToolCallEndEvent).ToolCallID; id != v.openTool {
			return nil, &ProtocolError{Event: t, Reason: "tool call " + id + " is not open"}
		}
		v.openTool = ""

	case events.EventTypeStepStarted, events.EventTypeStepFinished,
		events.EventTypeToolCallResult,
		events.EventTypeStateSnapshot, events.EventTypeStateDelta, events.EventTypeMessagesSnapshot,
		events.EventTypeRaw, events.EventTypeCustom:

	default:
		return nil, &ProtocolError{Event: t, Reason: "unsupported event type"}
	}
	return append(out, ev), nil
}

func (v *verifier) closeMessage() []events.Event {
	if v.openMessage == "" {
		return nil
	}
	id := v.openMessage
	v.openMessage = ""
	return []events.Event{events.Must(events.NewTextMessageEndEvent(id))}
}

func (v *verifier) closeTool() []events.Event {
	if v.openTool == "" {
		return nil
	}
	id := v.openTool
	v.openTool = ""
	return []events.Event{events.Must(events.NewToolCallEndEvent(id))}
}
