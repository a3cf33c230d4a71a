package adk

import (
	"context"
	"testing"

	"agui-stream/internal/domain"
	"agui-stream/internal/provider"
	"agui-stream/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestContentDeltas(t *testing.T) {
	calls := make(map[string]string)
	got := contentDeltas(&genai.Content{Parts: []*genai.Part{
		{Text: "thinking", Thought: true},
		{Text: "Let me search. "},
		{FunctionCall: &genai.FunctionCall{ID: "fc1", Name: "search", Args: map[string]any{"q": "go"}}},
	}}, calls)

	require.Len(t, got, 2)
	assert.Equal(t, "Let me search. ", got[0].Text)
	require.NotNil(t, got[1].ToolCall)
	assert.Equal(t, "fc1", got[1].ToolCall.ID)
	assert.Equal(t, "search", got[1].ToolCall.Name)
	assert.JSONEq(t, `{"q":"go"}`, got[1].ToolCall.Args)

	got = contentDeltas(&genai.Content{Parts: []*genai.Part{
		{FunctionResponse: &genai.FunctionResponse{ID: "fc1", Name: "search", Response: map[string]any{"hits": 3.0}}},
	}}, calls)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].ToolResult)
	assert.Equal(t, "fc1", got[0].ToolResult.ToolCallID)
	assert.JSONEq(t, `{"hits":3}`, got[0].ToolResult.Content)
}

func TestContentDeltasGeneratesIDs(t *testing.T) {
	calls := make(map[string]string)
	got := contentDeltas(&genai.Content{Parts: []*genai.Part{
		{FunctionCall: &genai.FunctionCall{Name: "now"}},
		{FunctionResponse: &genai.FunctionResponse{Name: "now"}},
	}}, calls)

	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].ToolCall.ID)
	assert.Empty(t, got[0].ToolCall.Args)
	// an unnamed response pairs with the unnamed call
	assert.Equal(t, got[0].ToolCall.ID, got[1].ToolResult.ToolCallID)
}

func TestContentDeltasNil(t *testing.T) {
	assert.Empty(t, contentDeltas(nil, map[string]string{}))
}

func TestStreamRequiresUserMessage(t *testing.T) {
	s := New(nil, session.NewManager("test"))
	for _, err := range s.Stream(context.Background(), domain.RunInput{}) {
		require.ErrorIs(t, err, provider.ErrNoUserMessage)
	}
}
