package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"agui-stream/internal/dispatch"
	"agui-stream/internal/events"
)

// printer writes the run to a terminal as it streams
type printer struct {
	w          io.Writer
	streamText bool
}

func newPrinter(w io.Writer, streamText bool) *printer {
	return &printer{w: w, streamText: streamText}
}

func (p *printer) OnRunStarted(_ context.Context, ev *events.RunStartedEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	fmt.Fprintln(p.w, color.HiBlackString("thread %s run %s", ev.ThreadID, ev.RunID))
	return dispatch.Mutation{}, nil
}

func (p *printer) OnTextMessageStart(_ context.Context, _ *events.TextMessageStartEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	if p.streamText {
		fmt.Fprint(p.w, color.MagentaString("assistant")+": ")
	}
	return dispatch.Mutation{}, nil
}

func (p *printer) OnTextMessageContent(_ context.Context, ev *events.TextMessageContentEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	if p.streamText {
		fmt.Fprint(p.w, ev.Delta)
	}
	return dispatch.Mutation{}, nil
}

func (p *printer) OnTextMessageEnd(_ context.Context, _ *events.TextMessageEndEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	if p.streamText {
		fmt.Fprintln(p.w)
	}
	return dispatch.Mutation{}, nil
}

func (p *printer) OnToolCallStart(_ context.Context, ev *events.ToolCallStartEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	fmt.Fprint(p.w, color.YellowString("tool %s", ev.ToolCallName)+" ")
	return dispatch.Mutation{}, nil
}

func (p *printer) OnToolCallArgs(_ context.Context, ev *events.ToolCallArgsEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	fmt.Fprint(p.w, ev.Delta)
	return dispatch.Mutation{}, nil
}

func (p *printer) OnToolCallEnd(_ context.Context, _ *events.ToolCallEndEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	fmt.Fprintln(p.w)
	return dispatch.Mutation{}, nil
}

func (p *printer) OnToolCallResult(_ context.Context, ev *events.ToolCallResultEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	fmt.Fprintln(p.w, color.CyanString("result")+": "+ev.Content)
	return dispatch.Mutation{}, nil
}

func (p *printer) OnStateSnapshot(_ context.Context, ev *events.StateSnapshotEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	if m, ok := ev.Snapshot.(map[string]any); ok && len(m) > 0 {
		fmt.Fprintln(p.w, color.HiBlackString("state %v", m))
	}
	return dispatch.Mutation{}, nil
}

func (p *printer) OnRunError(_ context.Context, ev *events.RunErrorEvent, _ dispatch.Params) (dispatch.Mutation, error) {
	fmt.Fprintln(p.w, color.RedString("error [%s]: %s", ev.Code, ev.Message))
	return dispatch.Mutation{}, nil
}
