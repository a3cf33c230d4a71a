// Package provider defines the boundary between the AG-UI protocol runner and the
// model or script that produces a response.
//
// A Source yields Deltas: text fragments, tool-call fragments and tool results. The
// runner turns them into AG-UI events and owns message ids, ordering and run lifecycle.
package provider

import (
	"context"
	"errors"
	"iter"

	"agui-stream/internal/domain"
)

// ErrNoUserMessage is returned by sources that need a user message to respond to
var ErrNoUserMessage = errors.New("no valid user message found")

// ToolCallDelta is a fragment of a tool call. The first fragment of a call carries its
// name; later fragments with the same ID append to its arguments.
type ToolCallDelta struct {
	ID   string
	Name string
	Args string
}

// ToolResultDelta is the result of a tool call
type ToolResultDelta struct {
	ToolCallID string
	Content    string
}

// Delta is one unit of provider output. Exactly one field is set.
type Delta struct {
	Text       string
	ToolCall   *ToolCallDelta
	ToolResult *ToolResultDelta
}

// Text returns a text delta
func Text(s string) Delta { return Delta{Text: s} }

// Source produces the response to a run
type Source interface {
	Stream(ctx context.Context, input domain.RunInput) iter.Seq2[Delta, error]
}

// SourceFunc adapts a function to a Source
type SourceFunc func(ctx context.Context, input domain.RunInput) iter.Seq2[Delta, error]

func (f SourceFunc) Stream(ctx context.Context, input domain.RunInput) iter.Seq2[Delta, error] {
	return f(ctx, input)
}

// Fail returns a sequence yielding only err
func Fail(err error) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		yield(Delta{}, err)
	}
}
