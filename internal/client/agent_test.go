package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agui-stream/internal/dispatch"
	"agui-stream/internal/domain"
	"agui-stream/internal/encoding"
	"agui-stream/internal/events"
	"agui-stream/internal/logging"
	"connectrpc.com/connect"
	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

// streamServer serves the frames of evs and then runs tail, if any
func streamServer(t *testing.T, codec encoding.Codec, tail func(w http.ResponseWriter, r *http.Request), evs ...events.Event) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", codec.ContentType())
		w.WriteHeader(http.StatusOK)
		for _, ev := range evs {
			frame, err := codec.EncodeFrame(ev)
			if err != nil {
				t.Errorf("encode %s: %v", ev.Type(), err)
				return
			}
			_, _ = w.Write(frame)
			w.(http.Flusher).Flush()
		}
		if tail != nil {
			tail(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// blockUntilGone keeps the response open until the client goes away
func blockUntilGone(_ http.ResponseWriter, r *http.Request) {
	<-r.Context().Done()
}

func newAgent(endpoint string) *Agent {
	return New(Config{Transport: NewHTTPTransport(endpoint), CancelGrace: time.Second, Logger: logging.Discard()})
}

func collect(t *testing.T, ch <-chan events.Event) []events.Event {
	t.Helper()
	var out []events.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("event channel was not closed")
			return out
		}
	}
}

func lastRunError(t *testing.T, evs []events.Event) *events.RunErrorEvent {
	t.Helper()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	require.Equal(t, events.EventTypeRunError, last.Type())
	return last.(*events.RunErrorEvent)
}

func textRun() []events.Event {
	return []events.Event{
		events.Must(events.NewRunStartedEvent("t1", "r1")),
		events.Must(events.NewTextMessageStartEvent("m1")),
		events.Must(events.NewTextMessageContentEvent("m1", "Hel")),
		events.Must(events.NewTextMessageContentEvent("m1", "lo")),
		events.Must(events.NewTextMessageEndEvent("m1")),
		events.Must(events.NewRunFinishedEvent("t1", "r1")),
	}
}

func TestRunDeliversEventsInOrder(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil, textRun()...)
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{ThreadID: "t1", RunID: "r1"})
	require.NoError(t, err)
	got := collect(t, ch)

	assert.Equal(t, types(textRun()), types(got))
	assert.Equal(t, StatusFinished, a.Status())

	st := a.State()
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "Hello", st.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, st.Messages[0].Role)
}

func TestRunOverProtoEncoding(t *testing.T) {
	var accept atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		codec := encoding.Negotiate(r.Header.Get("Accept"))
		w.Header().Set("Content-Type", codec.ContentType())
		for _, ev := range textRun() {
			frame, err := codec.EncodeFrame(ev)
			require.NoError(t, err)
			_, _ = w.Write(frame)
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL)
	tr.Accept = encoding.ContentTypeProto
	a := New(Config{Transport: tr, Logger: logging.Discard()})

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	got := collect(t, ch)

	assert.Equal(t, types(textRun()), types(got))
	assert.Equal(t, encoding.ContentTypeProto, accept.Load())
}

func TestRunStopsAtFirstTerminal(t *testing.T) {
	evs := append(textRun(), events.Must(events.NewRunFinishedEvent("t1", "r1")))
	srv := streamServer(t, encoding.SSE, nil, evs...)
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	got := collect(t, ch)

	terminals := 0
	for _, ev := range got {
		if events.IsTerminal(ev.Type()) {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.Equal(t, events.EventTypeRunFinished, got[len(got)-1].Type())
}

func TestRunPairsToolCalls(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil,
		events.Must(events.NewRunStartedEvent("t1", "r1")),
		events.Must(events.NewToolCallStartEvent("tc1", "search")),
		events.Must(events.NewToolCallArgsEvent("tc1", `{"q":`)),
		events.Must(events.NewToolCallArgsEvent("tc1", `"go"}`)),
		events.Must(events.NewToolCallEndEvent("tc1")),
		events.Must(events.NewRunFinishedEvent("t1", "r1")),
	)
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	collect(t, ch)

	tc, ok := a.State().ToolCall("tc1")
	require.True(t, ok)
	assert.Equal(t, "search", tc.Function.Name)
	assert.JSONEq(t, `{"q":"go"}`, tc.Function.Arguments)
}

func TestRunRejectsArgsForUnknownToolCall(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil,
		events.Must(events.NewRunStartedEvent("t1", "r1")),
		events.Must(events.NewToolCallArgsEvent("ghost", "{}")),
		events.Must(events.NewRunFinishedEvent("t1", "r1")),
	)
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	got := collect(t, ch)

	require.Len(t, got, 2)
	assert.Equal(t, CodeProtocol, lastRunError(t, got).Code)
	assert.Equal(t, StatusErrored, a.Status())
}

func TestRunRejectsMessageIDFromHistory(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil, textRun()...)
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{
		ThreadID: "t1",
		RunID:    "r1",
		Messages: []domain.Message{{ID: "m1", Role: domain.RoleUser, Content: "earlier"}},
	})
	require.NoError(t, err)
	got := collect(t, ch)

	assert.Equal(t, CodeProtocol, lastRunError(t, got).Code)
	assert.Equal(t, StatusErrored, a.Status())
	assert.Equal(t, "earlier", a.State().Messages[0].Content)
}

func TestRunDisconnectMidMessage(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil,
		events.Must(events.NewRunStartedEvent("t1", "r1")),
		events.Must(events.NewTextMessageStartEvent("m1")),
	)
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	got := collect(t, ch)

	assert.Equal(t, []events.EventType{
		events.EventTypeRunStarted,
		events.EventTypeTextMessageStart,
		events.EventTypeRunError,
	}, types(got))
	assert.Equal(t, CodeTransport, lastRunError(t, got).Code)
}

func TestRunTransportFailures(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no agent here", http.StatusInternalServerError)
		}))
		defer srv.Close()

		ch, err := newAgent(srv.URL).Run(context.Background(), domain.RunInput{})
		require.NoError(t, err)
		got := collect(t, ch)
		require.Len(t, got, 1)
		runErr := lastRunError(t, got)
		assert.Equal(t, CodeTransport, runErr.Code)
		assert.Contains(t, runErr.Message, "no agent here")
	})

	t.Run("refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		ch, err := newAgent(url).Run(context.Background(), domain.RunInput{})
		require.NoError(t, err)
		got := collect(t, ch)
		assert.Equal(t, CodeTransport, lastRunError(t, got).Code)
	})

	t.Run("content type", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("hello"))
		}))
		defer srv.Close()

		ch, err := newAgent(srv.URL).Run(context.Background(), domain.RunInput{})
		require.NoError(t, err)
		assert.Equal(t, CodeTransport, lastRunError(t, collect(t, ch)).Code)
	})
}

func TestRunDecodeFailure(t *testing.T) {
	srv := streamServer(t, encoding.SSE, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("data: {\"type\":\"NOT_AN_EVENT\"}\n\n"))
	}, events.Must(events.NewRunStartedEvent("t1", "r1")))

	ch, err := newAgent(srv.URL).Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	got := collect(t, ch)

	require.Len(t, got, 2)
	assert.Equal(t, CodeDecode, lastRunError(t, got).Code)
}

type failingSubscriber struct {
	failed    atomic.Int32
	finalized atomic.Int32
}

func (s *failingSubscriber) OnTextMessageContent(context.Context, *events.TextMessageContentEvent, dispatch.Params) (dispatch.Mutation, error) {
	return dispatch.Mutation{}, errors.New("rejected")
}

func (s *failingSubscriber) OnRunFailed(context.Context, error, dispatch.Params) error {
	s.failed.Add(1)
	return nil
}

func (s *failingSubscriber) OnRunFinalized(context.Context, dispatch.Params) error {
	s.finalized.Add(1)
	return nil
}

func TestRunHandlerFailure(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil, textRun()...)
	a := newAgent(srv.URL)
	sub := &failingSubscriber{}
	a.Subscribe(sub)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	got := collect(t, ch)

	runErr := lastRunError(t, got)
	assert.Equal(t, CodeHandler, runErr.Code)
	assert.Contains(t, runErr.Message, "rejected")
	assert.Equal(t, int32(1), sub.failed.Load())
	assert.Equal(t, int32(1), sub.finalized.Load())
}

type finishRejecter struct{}

func (finishRejecter) OnRunFinished(context.Context, *events.RunFinishedEvent, dispatch.Params) (dispatch.Mutation, error) {
	return dispatch.Mutation{}, errors.New("boom")
}

func TestRunHandlerFailureOnTerminalEvent(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil, textRun()...)
	a := newAgent(srv.URL)
	a.Subscribe(finishRejecter{})

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	got := collect(t, ch)

	runErr := lastRunError(t, got)
	assert.Equal(t, CodeHandler, runErr.Code)
	assert.Contains(t, runErr.Message, "boom")
	assert.Equal(t, StatusErrored, a.Status())
}

// slowFailureRecorder records which runs reached the finalize hook
type slowFailureRecorder struct {
	mu        sync.Mutex
	finalized []string
}

func (s *slowFailureRecorder) OnRunError(context.Context, *events.RunErrorEvent, dispatch.Params) (dispatch.Mutation, error) {
	time.Sleep(30 * time.Millisecond)
	return dispatch.Mutation{}, nil
}

func (s *slowFailureRecorder) OnRunFinalized(_ context.Context, p dispatch.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.finalized = append(s.finalized, p.Input.RunID)
	return nil
}

func (s *slowFailureRecorder) runs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.finalized...)
}

func TestCancelTimeoutSilencesAbandonedRun(t *testing.T) {
	evs := []events.Event{events.Must(events.NewRunStartedEvent("t1", "old"))}
	for range 2 * streamBuffer {
		evs = append(evs, events.Must(events.NewStepStartedEvent("s")), events.Must(events.NewStepFinishedEvent("s")))
	}
	srv := streamServer(t, encoding.SSE, blockUntilGone, evs...)
	a := New(Config{Transport: NewHTTPTransport(srv.URL), CancelGrace: 50 * time.Millisecond, Logger: logging.Discard()})
	rec := &slowFailureRecorder{}
	a.Subscribe(rec)

	// nobody reads the channel until the buffer is full
	old, err := a.Run(context.Background(), domain.RunInput{ThreadID: "t1", RunID: "old"})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(old) == streamBuffer }, 2*time.Second, 5*time.Millisecond)

	require.ErrorIs(t, a.Cancel(), ErrCancelTimeout)
	assert.Equal(t, StatusCancelled, a.Status())
	finalizedBefore := len(rec.runs())

	done := streamServer(t, encoding.SSE, nil, textRun()...)
	a.cfg.Transport = NewHTTPTransport(done.URL)
	ch, err := a.Run(context.Background(), domain.RunInput{ThreadID: "t1", RunID: "r1"})
	require.NoError(t, err)
	collect(t, ch)

	// draining lets the abandoned run goroutine exit
	for range old {
	}
	assert.Equal(t, []string{"r1"}, rec.runs()[finalizedBefore:])
	assert.Equal(t, StatusFinished, a.Status())
}

func TestCancelWithinGrace(t *testing.T) {
	srv := streamServer(t, encoding.SSE, blockUntilGone, events.Must(events.NewRunStartedEvent("t1", "r1")))
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)

	first := <-ch
	require.Equal(t, events.EventTypeRunStarted, first.Type())

	start := time.Now()
	require.NoError(t, a.Cancel())
	assert.Less(t, time.Since(start), time.Second)

	rest := collect(t, ch)
	require.Len(t, rest, 1)
	assert.Equal(t, CodeCancelled, lastRunError(t, rest).Code)
	assert.Equal(t, StatusCancelled, a.Status())

	done := streamServer(t, encoding.SSE, nil, textRun()...)
	a.cfg.Transport = NewHTTPTransport(done.URL)
	ch, err = a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	collect(t, ch)
	assert.Equal(t, StatusFinished, a.Status())
}

func TestCancelWhenIdleIsNoop(t *testing.T) {
	a := newAgent("http://127.0.0.1:1")
	require.NoError(t, a.Cancel())
	assert.Equal(t, StatusIdle, a.Status())
}

func TestConcurrentRunRejected(t *testing.T) {
	srv := streamServer(t, encoding.SSE, blockUntilGone, events.Must(events.NewRunStartedEvent("t1", "r1")))
	a := newAgent(srv.URL)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), domain.RunInput{})
	require.ErrorIs(t, err, ErrInvalidState)
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StatusRunning, serr.Status)
	require.ErrorIs(t, a.Reset(), ErrInvalidState)

	require.NoError(t, a.Cancel())
	collect(t, ch)
	require.NoError(t, a.Reset())
	assert.Equal(t, StatusIdle, a.Status())
}

func TestParentContextCancellation(t *testing.T) {
	srv := streamServer(t, encoding.SSE, blockUntilGone, events.Must(events.NewRunStartedEvent("t1", "r1")))
	a := newAgent(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := a.Run(ctx, domain.RunInput{})
	require.NoError(t, err)
	<-ch
	cancel()

	got := collect(t, ch)
	assert.Equal(t, CodeCancelled, lastRunError(t, got).Code)
	assert.Equal(t, StatusCancelled, a.Status())
}

type finalizeCounter struct{ n atomic.Int32 }

func (c *finalizeCounter) OnRunFinalized(context.Context, dispatch.Params) error {
	c.n.Add(1)
	return nil
}

func TestCloneIsIndependent(t *testing.T) {
	srv := streamServer(t, encoding.SSE, nil, textRun()...)
	tr := NewHTTPTransport(srv.URL)
	tr.Headers.Set("Authorization", "Bearer a")
	a := New(Config{Transport: tr, Logger: logging.Discard()})
	counter := &finalizeCounter{}
	a.Subscribe(counter)

	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	collect(t, ch)

	c := a.Clone()
	assert.Equal(t, StatusIdle, c.Status())
	assert.Empty(t, c.State().Messages)
	assert.Equal(t, a.cfg.CancelGrace, c.cfg.CancelGrace)

	ctr := c.cfg.Transport.(*HTTPTransport)
	assert.Equal(t, "Bearer a", ctr.Headers.Get("Authorization"))
	ctr.Headers.Set("Authorization", "Bearer b")
	assert.Equal(t, "Bearer a", tr.Headers.Get("Authorization"))

	ch, err = c.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	collect(t, ch)
	assert.Equal(t, int32(1), counter.n.Load())
	assert.Equal(t, StatusFinished, a.Status())
}

func TestRunGeneratesIDs(t *testing.T) {
	var seen atomic.Pointer[domain.RunInput]
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got domain.RunInput
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		seen.Store(&got)
		w.Header().Set("Content-Type", encoding.ContentTypeSSE)
		for _, ev := range []events.Event{
			events.Must(events.NewRunStartedEvent(got.ThreadID, got.RunID)),
			events.Must(events.NewRunFinishedEvent(got.ThreadID, got.RunID)),
		} {
			frame, _ := encoding.SSE.EncodeFrame(ev)
			_, _ = w.Write(frame)
		}
	}))
	defer srv.Close()

	ch, err := newAgent(srv.URL).Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)
	evs := collect(t, ch)

	require.Len(t, evs, 2)
	got := seen.Load()
	require.NotNil(t, got)
	assert.Contains(t, got.ThreadID, "thread_")
	assert.Contains(t, got.RunID, "run_")
}

func TestConnectTransport(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(RunAgentProcedure, connect.NewServerStreamHandler(RunAgentProcedure,
		func(_ context.Context, req *connect.Request[structpb.Struct], stream *connect.ServerStream[structpb.Struct]) error {
			input, err := encoding.InputFromStruct(req.Msg)
			if err != nil {
				return connect.NewError(connect.CodeInvalidArgument, err)
			}
			if req.Header().Get("X-Test") != "yes" {
				return connect.NewError(connect.CodeUnauthenticated, errors.New("missing header"))
			}
			for _, ev := range []events.Event{
				events.Must(events.NewRunStartedEvent(input.ThreadID, input.RunID)),
				events.Must(events.NewTextMessageStartEvent("m1")),
				events.Must(events.NewTextMessageContentEvent("m1", input.Messages[0].Content)),
				events.Must(events.NewTextMessageEndEvent("m1")),
				events.Must(events.NewRunFinishedEvent(input.ThreadID, input.RunID)),
			} {
				msg, err := encoding.ToStruct(ev)
				if err != nil {
					return err
				}
				if err := stream.Send(msg); err != nil {
					return err
				}
			}
			return nil
		}))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tr := NewConnectTransport(srv.Client(), srv.URL)
	tr.Header().Set("X-Test", "yes")
	a := New(Config{Transport: tr, Logger: logging.Discard()})

	ch, err := a.Run(context.Background(), domain.RunInput{
		ThreadID: "t1",
		RunID:    "r1",
		Messages: []domain.Message{{ID: "u1", Role: domain.RoleUser, Content: "ping"}},
	})
	require.NoError(t, err)
	got := collect(t, ch)

	assert.Equal(t, types(textRun()), types(got))
	started := got[0].(*events.RunStartedEvent)
	assert.Equal(t, "t1", started.ThreadID)

	msg, ok := a.State().Message("m1")
	require.True(t, ok)
	assert.Equal(t, "ping", msg.Content)

	// the clone keeps the header
	c := a.Clone()
	ch, err = c.Run(context.Background(), domain.RunInput{Messages: []domain.Message{{ID: "u1", Role: domain.RoleUser, Content: "pong"}}})
	require.NoError(t, err)
	assert.Equal(t, events.EventTypeRunFinished, collect(t, ch)[4].Type())
}

func TestConnectTransportError(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle(RunAgentProcedure, connect.NewServerStreamHandler(RunAgentProcedure,
		func(context.Context, *connect.Request[structpb.Struct], *connect.ServerStream[structpb.Struct]) error {
			return connect.NewError(connect.CodeUnavailable, errors.New("overloaded"))
		}))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := New(Config{Transport: NewConnectTransport(srv.Client(), srv.URL), Logger: logging.Discard()})
	ch, err := a.Run(context.Background(), domain.RunInput{})
	require.NoError(t, err)

	runErr := lastRunError(t, collect(t, ch))
	assert.Equal(t, CodeTransport, runErr.Code)
	assert.Contains(t, runErr.Message, "overloaded")
}
