package dispatch

import (
	"context"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"agui-stream/internal/state"
)

// Mutation is the change a handler proposes for the run state
type Mutation = state.Mutation

// Params is what a handler sees: the run state as left by earlier handlers and the
// input the run was started with.
type Params struct {
	State state.RunState
	Input domain.RunInput
}

// Subscriber is any value implementing one or more of the handler interfaces below.
// Kinds it has no handler for are skipped.
type Subscriber any

// EventHandler sees every event before the kind specific handler
type EventHandler interface {
	OnEvent(ctx context.Context, ev events.Event, p Params) (Mutation, error)
}

// EventFunc adapts a function to EventHandler
type EventFunc func(ctx context.Context, ev events.Event, p Params) (Mutation, error)

func (f EventFunc) OnEvent(ctx context.Context, ev events.Event, p Params) (Mutation, error) {
	return f(ctx, ev, p)
}

type RunStartedHandler interface {
	OnRunStarted(ctx context.Context, ev *events.RunStartedEvent, p Params) (Mutation, error)
}

type RunFinishedHandler interface {
	OnRunFinished(ctx context.Context, ev *events.RunFinishedEvent, p Params) (Mutation, error)
}

type RunErrorHandler interface {
	OnRunError(ctx context.Context, ev *events.RunErrorEvent, p Params) (Mutation, error)
}

type StepStartedHandler interface {
	OnStepStarted(ctx context.Context, ev *events.StepStartedEvent, p Params) (Mutation, error)
}

type StepFinishedHandler interface {
	OnStepFinished(ctx context.Context, ev *events.StepFinishedEvent, p Params) (Mutation, error)
}

type TextMessageStartHandler interface {
	OnTextMessageStart(ctx context.Context, ev *events.TextMessageStartEvent, p Params) (Mutation, error)
}

type TextMessageContentHandler interface {
	OnTextMessageContent(ctx context.Context, ev *events.TextMessageContentEvent, p Params) (Mutation, error)
}

type TextMessageEndHandler interface {
	OnTextMessageEnd(ctx context.Context, ev *events.TextMessageEndEvent, p Params) (Mutation, error)
}

type ToolCallStartHandler interface {
	OnToolCallStart(ctx context.Context, ev *events.ToolCallStartEvent, p Params) (Mutation, error)
}

type ToolCallArgsHandler interface {
	OnToolCallArgs(ctx context.Context, ev *events.ToolCallArgsEvent, p Params) (Mutation, error)
}

type ToolCallEndHandler interface {
	OnToolCallEnd(ctx context.Context, ev *events.ToolCallEndEvent, p Params) (Mutation, error)
}

type ToolCallResultHandler interface {
	OnToolCallResult(ctx context.Context, ev *events.ToolCallResultEvent, p Params) (Mutation, error)
}

type StateSnapshotHandler interface {
	OnStateSnapshot(ctx context.Context, ev *events.StateSnapshotEvent, p Params) (Mutation, error)
}

type StateDeltaHandler interface {
	OnStateDelta(ctx context.Context, ev *events.StateDeltaEvent, p Params) (Mutation, error)
}

type MessagesSnapshotHandler interface {
	OnMessagesSnapshot(ctx context.Context, ev *events.MessagesSnapshotEvent, p Params) (Mutation, error)
}

type RawHandler interface {
	OnRaw(ctx context.Context, ev *events.RawEvent, p Params) (Mutation, error)
}

type CustomHandler interface {
	OnCustom(ctx context.Context, ev *events.CustomEvent, p Params) (Mutation, error)
}

// StateChangedHandler is told after an event changed the custom state
type StateChangedHandler interface {
	OnStateChanged(ctx context.Context, p Params) error
}

// MessagesChangedHandler is told after an event changed the message list
type MessagesChangedHandler interface {
	OnMessagesChanged(ctx context.Context, p Params) error
}

// RunFinalizedHandler is told once the run has ended, whatever the outcome
type RunFinalizedHandler interface {
	OnRunFinalized(ctx context.Context, p Params) error
}

// RunFailedHandler is told when the run ended with an error
type RunFailedHandler interface {
	OnRunFailed(ctx context.Context, err error, p Params) error
}

// kindHandler calls the handler sub has for the kind of ev. ok is false when sub does
// not handle that kind.
func kindHandler(ctx context.Context, sub Subscriber, ev events.Event, p Params) (m Mutation, ok bool, err error) {
	switch ev.Type() {
	case events.EventTypeRunStarted:
		if h, ok := sub.(RunStartedHandler); ok {
			m, err = h.OnRunStarted(ctx, ev.(*events.RunStartedEvent), p)
			return m, true, err
		}
	case events.EventTypeRunFinished:
		if h, ok := sub.(RunFinishedHandler); ok {
			m, err = h.OnRunFinished(ctx, ev.(*events.RunFinishedEvent), p)
			return m, true, err
		}
	case events.EventTypeRunError:
		if h, ok := sub.(RunErrorHandler); ok {
			m, err = h.OnRunError(ctx, ev.(*events.RunErrorEvent), p)
			return m, true, err
		}
	case events.EventTypeStepStarted:
		if h, ok := sub.(StepStartedHandler); ok {
			m, err = h.OnStepStarted(ctx, ev.(*events.StepStartedEvent), p)
			return m, true, err
		}
	case events.EventTypeStepFinished:
		if h, ok := sub.(StepFinishedHandler); ok {
			m, err = h.OnStepFinished(ctx, ev.(*events.StepFinishedEvent), p)
			return m, true, err
		}
	case events.EventTypeTextMessageStart:
		if h, ok := sub.(TextMessageStartHandler); ok {
			m, err = h.OnTextMessageStart(ctx, ev.(*events.TextMessageStartEvent), p)
			return m, true, err
		}
	case events.EventTypeTextMessageContent:
		if h, ok := sub.(TextMessageContentHandler); ok {
			m, err = h.OnTextMessageContent(ctx, ev.(*events.TextMessageContentEvent), p)
			return m, true, err
		}
	case events.EventTypeTextMessageEnd:
		if h, ok := sub.(TextMessageEndHandler); ok {
			m, err = h.OnTextMessageEnd(ctx, ev.(*events.TextMessageEndEvent), p)
			return m, true, err
		}
	case events.EventTypeToolCallStart:
		if h, ok := sub.(ToolCallStartHandler); ok {
			m, err = h.OnToolCallStart(ctx, ev.(*events.ToolCallStartEvent), p)
			return m, true, err
		}
	case events.EventTypeToolCallArgs:
		if h, ok := sub.(ToolCallArgsHandler); ok {
			m, err = h.OnToolCallArgs(ctx, ev.(*events.ToolCallArgsEvent), p)
			return m, true, err
		}
	case events.EventTypeToolCallEnd:
		if h, ok := sub.(ToolCallEndHandler); ok {
			m, err = h.OnToolCallEnd(ctx, ev.(*events.ToolCallEndEvent), p)
			return m, true, err
		}
	case events.EventTypeToolCallResult:
		if h, ok := sub.(ToolCallResultHandler); ok {
			m, err = h.OnToolCallResult(ctx, ev.(*events.ToolCallResultEvent), p)
			return m, true, err
		}
	case events.EventTypeStateSnapshot:
		if h, ok := sub.(StateSnapshotHandler); ok {
			m, err = h.OnStateSnapshot(ctx, ev.(*events.StateSnapshotEvent), p)
			return m, true, err
		}
	case events.EventTypeStateDelta:
		if h, ok := sub.(StateDeltaHandler); ok {
			m, err = h.OnStateDelta(ctx, ev.(*events.StateDeltaEvent), p)
			return m, true, err
		}
	case events.EventTypeMessagesSnapshot:
		if h, ok := sub.(MessagesSnapshotHandler); ok {
			m, err = h.OnMessagesSnapshot(ctx, ev.(*events.MessagesSnapshotEvent), p)
			return m, true, err
		}
	case events.EventTypeRaw:
		if h, ok := sub.(RawHandler); ok {
			m, err = h.OnRaw(ctx, ev.(*events.RawEvent), p)
			return m, true, err
		}
	case events.EventTypeCustom:
		if h, ok := sub.(CustomHandler); ok {
			m, err = h.OnCustom(ctx, ev.(*events.CustomEvent), p)
			return m, true, err
		}
	}
	return Mutation{}, false, nil
}

// changes reports which parts of the run state the default reducer touches for t
func changes(t events.EventType) (messages, custom bool) {
	switch t {
	case events.EventTypeTextMessageStart,
		events.EventTypeTextMessageContent,
		events.EventTypeToolCallStart,
		events.EventTypeToolCallArgs,
		events.EventTypeToolCallResult,
		events.EventTypeMessagesSnapshot:
		return true, false
	case events.EventTypeStateSnapshot, events.EventTypeStateDelta:
		return false, true
	}
	return false, false
}
