package state

import (
	"testing"
	"time"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fold(t *testing.T, s RunState, evs ...events.Event) RunState {
	t.Helper()
	for _, ev := range evs {
		var err error
		s, err = Apply(s, ev)
		require.NoError(t, err, string(ev.Type()))
	}
	return s
}

func TestApplyTextMessage(t *testing.T) {
	s := fold(t, RunState{},
		events.Must(events.NewRunStartedEvent("t1", "r1")),
		events.Must(events.NewTextMessageStartEvent("m1")),
		events.Must(events.NewTextMessageContentEvent("m1", "Hello")),
		events.Must(events.NewTextMessageContentEvent("m1", " world!")),
		events.Must(events.NewTextMessageEndEvent("m1")),
		events.Must(events.NewRunFinishedEvent("t1", "r1")),
	)

	assert.Equal(t, "t1", s.ThreadID)
	assert.Equal(t, "r1", s.RunID)
	assert.Equal(t, StatusFinished, s.Status)
	assert.Empty(t, s.OpenMessageID)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, domain.Message{ID: "m1", Role: domain.RoleAssistant, Content: "Hello world!"}, s.Messages[0])
}

func TestApplyToolCallPairing(t *testing.T) {
	s := fold(t, RunState{},
		events.Must(events.NewToolCallStartEvent("t1", "lookup")),
		events.Must(events.NewToolCallArgsEvent("t1", `{"x":1}`)),
		events.Must(events.NewToolCallEndEvent("t1")),
	)

	tc, ok := s.ToolCall("t1")
	require.True(t, ok)
	assert.Equal(t, "t1", tc.ID)
	assert.Equal(t, "lookup", tc.Function.Name)
	assert.Equal(t, `{"x":1}`, tc.Function.Arguments)
	assert.Empty(t, s.OpenToolCallID)

	_, err := Apply(s, events.Must(events.NewToolCallArgsEvent("t1", "more")))
	assert.ErrorIs(t, err, ErrUnknownToolCall)

	_, err = Apply(RunState{}, events.Must(events.NewToolCallArgsEvent("nope", "{}")))
	assert.ErrorIs(t, err, ErrUnknownToolCall)

	_, err = Apply(RunState{}, events.Must(events.NewToolCallEndEvent("nope")))
	assert.ErrorIs(t, err, ErrUnknownToolCall)
}

func TestApplyToolCallAttachesToParent(t *testing.T) {
	s := fold(t, RunState{},
		events.Must(events.NewTextMessageStartEvent("m1")),
		events.Must(events.NewTextMessageContentEvent("m1", "Let me check")),
		events.Must(events.NewTextMessageEndEvent("m1")),
		events.Must(events.NewToolCallStartEvent("c1", "search", events.WithParentMessageID("m1"))),
		events.Must(events.NewToolCallEndEvent("c1")),
		events.Must(events.NewToolCallResultEvent("r1", "c1", "found")),
	)

	require.Len(t, s.Messages, 2)
	assert.Equal(t, "Let me check", s.Messages[0].Content)
	require.Len(t, s.Messages[0].ToolCalls, 1)
	assert.Equal(t, "c1", s.Messages[0].ToolCalls[0].ID)
	assert.Equal(t, domain.Message{ID: "r1", Role: domain.RoleTool, Content: "found", ToolCallID: "c1"}, s.Messages[1])
}

func TestApplyRejectsUnopenedMessage(t *testing.T) {
	_, err := Apply(RunState{}, events.Must(events.NewTextMessageContentEvent("m1", "x")))
	assert.ErrorIs(t, err, ErrUnknownMessage)

	s := fold(t, RunState{},
		events.Must(events.NewTextMessageStartEvent("m1")),
		events.Must(events.NewTextMessageEndEvent("m1")),
	)
	_, err = Apply(s, events.Must(events.NewTextMessageEndEvent("m1")))
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestApplyRejectsReusedMessageID(t *testing.T) {
	s, err := New(domain.RunInput{Messages: []domain.Message{{ID: "h1", Role: domain.RoleUser, Content: "earlier"}}})
	require.NoError(t, err)

	_, err = Apply(s, events.Must(events.NewTextMessageStartEvent("h1")))
	require.ErrorIs(t, err, ErrDuplicateMessage)
	assert.Equal(t, "earlier", s.Messages[0].Content)

	s = fold(t, s,
		events.Must(events.NewTextMessageStartEvent("m1")),
		events.Must(events.NewTextMessageEndEvent("m1")),
	)
	_, err = Apply(s, events.Must(events.NewTextMessageStartEvent("m1")))
	assert.ErrorIs(t, err, ErrDuplicateMessage)
}

func TestApplyDoesNotAliasPreviousState(t *testing.T) {
	before := fold(t, RunState{},
		events.Must(events.NewTextMessageStartEvent("m1")),
		events.Must(events.NewTextMessageContentEvent("m1", "a")),
	)
	after := fold(t, before, events.Must(events.NewTextMessageContentEvent("m1", "b")))

	assert.Equal(t, "a", before.Messages[0].Content)
	assert.Equal(t, "ab", after.Messages[0].Content)
}

func TestApplyStateEvents(t *testing.T) {
	s := fold(t, RunState{},
		events.Must(events.NewStateSnapshotEvent(map[string]any{"count": 1, "todos": []any{"a"}})),
		events.Must(events.NewStateDeltaEvent([]events.PatchOperation{
			{Op: events.PatchReplace, Path: "/count", Value: 2},
			{Op: events.PatchAdd, Path: "/todos/-", Value: "b"},
		})),
	)
	assert.JSONEq(t, `{"count":2,"todos":["a","b"]}`, string(s.State))
	assert.Equal(t, int64(2), s.Value("count").Int())

	var decoded struct {
		Todos []string `json:"todos"`
	}
	require.NoError(t, s.Decode(&decoded))
	assert.Equal(t, []string{"a", "b"}, decoded.Todos)

	_, err := Apply(s, events.Must(events.NewStateDeltaEvent([]events.PatchOperation{
		{Op: events.PatchRemove, Path: "/missing"},
	})))
	var perr *PatchError
	assert.ErrorAs(t, err, &perr)
}

func TestApplyMessagesSnapshotAndErrors(t *testing.T) {
	s := fold(t, RunState{},
		events.Must(events.NewMessagesSnapshotEvent([]domain.Message{{ID: "u1", Role: domain.RoleUser, Content: "hi"}})),
		events.Must(events.NewRunErrorEvent("boom", events.WithCode("X"))),
	)
	require.Len(t, s.Messages, 1)
	assert.Equal(t, StatusErrored, s.Status)
	assert.Equal(t, "boom", s.ErrorText)
	assert.Equal(t, "X", s.ErrorCode)
}

func TestMerge(t *testing.T) {
	s, err := New(domain.RunInput{
		ThreadID: "t1",
		RunID:    "r1",
		State:    map[string]any{"log": ""},
		Messages: []domain.Message{{ID: "u1", Role: domain.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	s, err = Merge(s, Mutation{Patch: []events.PatchOperation{{Op: events.PatchReplace, Path: "/log", Value: "A"}}})
	require.NoError(t, err)
	assert.Equal(t, "A", s.Value("log").String())

	s, err = Merge(s, Mutation{
		Messages: []domain.Message{},
		State:    []byte(`{"log":"AB"}`),
	})
	require.NoError(t, err)
	assert.Empty(t, s.Messages)
	assert.NotNil(t, s.Messages)
	assert.Equal(t, "AB", s.Value("log").String())

	_, err = Merge(s, Mutation{State: []byte(`{`)})
	assert.Error(t, err)

	assert.True(t, Mutation{}.IsZero())
	assert.False(t, Mutation{StopPropagation: true}.IsZero())
}

func TestStore(t *testing.T) {
	now := time.Unix(1000, 0)
	st := NewStore()
	st.now = func() time.Time { return now }

	assert.Empty(t, st.Get("t1"))

	st.Set("t1", map[string]any{"a": 1})
	merged := st.Merge("t1", map[string]any{"b": 2, "a": 3})
	assert.Equal(t, map[string]any{"a": 3, "b": 2}, merged)

	merged["c"] = 4
	assert.NotContains(t, st.Get("t1"), "c")

	st.Set("t2", nil)
	assert.Equal(t, 2, st.Len())

	now = now.Add(time.Hour)
	st.Get("t2")
	assert.Equal(t, 1, st.Cleanup(30*time.Minute))
	assert.Equal(t, 1, st.Len())

	st.Delete("t2")
	assert.Zero(t, st.Len())
}
