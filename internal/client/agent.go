// Package client connects to an AG-UI agent, streams the events of a run and
// dispatches them to subscribers.
//
// A run always ends with exactly one terminal event. Transport failures, undecodable
// frames, ordering violations, failing subscribers and cancellation are reported as a
// synthesized RUN_ERROR event, never as an error from the event channel.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"agui-stream/internal/dispatch"
	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"agui-stream/internal/logging"
	"agui-stream/internal/state"
)

// Status is the position of an agent in its run lifecycle
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusErrored   Status = "errored"
	StatusCancelled Status = "cancelled"
)

// DefaultCancelGrace is how long Cancel waits for a run to stop
const DefaultCancelGrace = 2 * time.Second

const streamBuffer = 16

// Config is the static configuration of an agent
type Config struct {
	Transport   Transport
	CancelGrace time.Duration
	Logger      *slog.Logger
}

// Agent runs one AG-UI run at a time against a transport
type Agent struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	status  Status
	current *run
	last    state.RunState
}

// run is the bookkeeping of one Run call
type run struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	settled   bool
	cancelled bool

	// hookMu serializes subscriber calls with detach
	hookMu   sync.Mutex
	detached bool
}

// settle records the first outcome of the run. It reports whether the caller won.
func (r *run) settle(cancelled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.settled {
		return false
	}
	r.settled = true
	r.cancelled = cancelled
	return true
}

func (r *run) wasCancelled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cancelled
}

// guard calls fn unless the run was detached from the agent. It reports whether fn ran.
func (r *run) guard(fn func()) bool {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()

	if r.detached {
		return false
	}
	fn()
	return true
}

// detach stops r from reaching subscribers. It waits for a subscriber call in progress.
func (r *run) detach() {
	r.hookMu.Lock()
	defer r.hookMu.Unlock()

	r.detached = true
}

// New creates an idle agent
func New(cfg Config) *Agent {
	if cfg.CancelGrace <= 0 {
		cfg.CancelGrace = DefaultCancelGrace
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	logger := cfg.Logger.With(logging.Component("agent"))
	return &Agent{
		cfg:        cfg,
		dispatcher: dispatch.New(dispatch.WithLogger(logger)),
		logger:     logger,
		status:     StatusIdle,
	}
}

// Status returns the current status
func (a *Agent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.status
}

// State returns the run state left by the most recent run
func (a *Agent) State() state.RunState {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.last.Clone()
}

// Subscribe registers a subscriber for this agent's runs
func (a *Agent) Subscribe(sub dispatch.Subscriber) dispatch.Handle {
	return a.dispatcher.Subscribe(sub)
}

// Unsubscribe removes a subscriber. Called during a run, it applies from the next event.
func (a *Agent) Unsubscribe(h dispatch.Handle) bool {
	return a.dispatcher.Unsubscribe(h)
}

// Clone returns an idle agent with the same configuration. Run state and subscribers
// are not shared.
func (a *Agent) Clone() *Agent {
	cfg := a.cfg
	if c, ok := cfg.Transport.(cloner); ok {
		cfg.Transport = c.Clone()
	}
	return New(cfg)
}

// Reset moves a finished, errored or cancelled agent back to idle
func (a *Agent) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.status == StatusRunning {
		return &InvalidStateError{Op: "reset", Status: a.status}
	}
	a.status = StatusIdle
	return nil
}

// Run starts a run and returns its events. Runs started after a previous run ended reset
// the agent to idle first. Missing thread and run ids are generated. The channel is
// closed after the terminal event.
func (a *Agent) Run(ctx context.Context, input domain.RunInput) (<-chan events.Event, error) {
	if a.cfg.Transport == nil {
		return nil, errors.New("run: no transport configured")
	}

	input = input.Clone()
	if input.ThreadID == "" {
		input.ThreadID = events.GenerateThreadID()
	}
	if input.RunID == "" {
		input.RunID = events.GenerateRunID()
	}
	st, err := state.New(input)
	if err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}

	a.mu.Lock()
	if a.status == StatusRunning {
		status := a.status
		a.mu.Unlock()
		return nil, &InvalidStateError{Op: "run", Status: status}
	}
	runCtx, cancel := context.WithCancel(ctx)
	r := &run{cancel: cancel, done: make(chan struct{})}
	a.status = StatusRunning
	a.current = r
	a.last = st
	a.mu.Unlock()

	out := make(chan events.Event, streamBuffer)
	go a.loop(runCtx, r, input, st, out)
	return out, nil
}

// Cancel aborts the running run. The event channel ends with a RUN_ERROR carrying the
// CANCELLED code. Cancel waits up to the grace period for the run to stop and is a no-op
// when the agent is not running.
func (a *Agent) Cancel() error {
	a.mu.Lock()
	r := a.current
	running := a.status == StatusRunning
	a.mu.Unlock()
	if !running || r == nil {
		return nil
	}

	if r.settle(true) {
		r.cancel()
	}

	timer := time.NewTimer(a.cfg.CancelGrace)
	defer timer.Stop()
	select {
	case <-r.done:
		return nil
	case <-timer.C:
		a.logger.Warn("run did not stop within the cancel grace period", slog.Duration("grace", a.cfg.CancelGrace))
		// the agent accepts new runs from here on, so the old run must stay silent
		r.detach()
		a.finish(r, StatusCancelled, state.RunState{}, false)
		return ErrCancelTimeout
	}
}

func (a *Agent) loop(ctx context.Context, r *run, input domain.RunInput, st state.RunState, out chan<- events.Event) {
	defer close(r.done)
	defer close(out)
	defer r.cancel()

	logger := a.logger.With(logging.Run(input.ThreadID, input.RunID))
	logger.Debug("run started")

	stream, err := a.cfg.Transport.Open(ctx, input)
	if err != nil {
		a.abort(ctx, r, logger, input, st, out, err)
		return
	}
	defer stream.Close()

	v := &verifier{}
	for {
		ev, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = &TransportError{Op: "read", Err: fmt.Errorf("stream ended before a terminal event: %w", io.ErrUnexpectedEOF)}
			}
			a.abort(ctx, r, logger, input, st, out, err)
			return
		}

		admitted, err := v.admit(ev)
		if err != nil {
			a.abort(ctx, r, logger, input, st, out, err)
			return
		}

		for _, ev := range admitted {
			terminal := events.IsTerminal(ev.Type())
			if terminal && !r.settle(false) {
				a.abort(ctx, r, logger, input, st, out, context.Canceled)
				return
			}

			var next state.RunState
			if !r.guard(func() { next, err = a.dispatcher.Dispatch(ctx, ev, st, input) }) {
				return
			}
			if err != nil {
				var herr *dispatch.HandlerError
				if !errors.As(err, &herr) {
					err = &ProtocolError{Event: ev.Type(), Err: err}
				}
				a.abort(ctx, r, logger, input, st, out, err)
				return
			}
			st = next

			if !terminal {
				select {
				case out <- ev:
				case <-ctx.Done():
					a.abort(ctx, r, logger, input, st, out, ctx.Err())
					return
				}
				continue
			}

			status := StatusFinished
			var runErr error
			if ev.Type() == events.EventTypeRunError {
				status = StatusErrored
				runErr = errors.New(ev.(*events.RunErrorEvent).Message)
			}
			a.deliverFinal(out, ev)
			r.guard(func() { a.finalize(ctx, logger, runErr, st, input) })
			a.finish(r, status, st, true)
			logger.Debug("run ended", slog.String("status", string(status)))
			return
		}
	}
}

// abort ends the run with a synthesized RUN_ERROR describing err
func (a *Agent) abort(ctx context.Context, r *run, logger *slog.Logger, input domain.RunInput, st state.RunState, out chan<- events.Event, err error) {
	cancelled := r.wasCancelled() || errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled)
	if cancelled {
		err = fmt.Errorf("run cancelled: %w", context.Canceled)
	} else if !r.settle(false) && r.wasCancelled() {
		// Cancel won the race after the failure was observed
		cancelled = true
		err = fmt.Errorf("run cancelled: %w", context.Canceled)
	}

	code := errorCode(err)
	ev := events.Must(events.NewRunErrorEvent(err.Error(), events.WithCode(code), events.WithRunID(input.RunID)))

	// the run context may already be cancelled; subscribers still get the failure
	hookCtx := context.WithoutCancel(ctx)
	r.guard(func() {
		if next, derr := a.dispatcher.Dispatch(hookCtx, ev, st, input); derr == nil {
			st = next
		} else {
			logger.Debug("dispatching synthesized RUN_ERROR failed", logging.Error(derr))
		}
	})
	a.deliverFinal(out, ev)
	r.guard(func() { a.finalize(hookCtx, logger, err, st, input) })

	status := StatusErrored
	if cancelled {
		status = StatusCancelled
		logger.Info("run cancelled")
	} else {
		logger.Warn("run failed", slog.String("code", code), logging.Error(err))
	}
	a.finish(r, status, st, true)
}

// deliverFinal sends the terminal event. A consumer that stopped reading gets the grace
// period to come back before the event is dropped.
func (a *Agent) deliverFinal(out chan<- events.Event, ev events.Event) {
	select {
	case out <- ev:
		return
	default:
	}
	timer := time.NewTimer(a.cfg.CancelGrace)
	defer timer.Stop()
	select {
	case out <- ev:
	case <-timer.C:
		a.logger.Warn("terminal event dropped, consumer is not reading", slog.String("type", string(ev.Type())))
	}
}

func (a *Agent) finalize(ctx context.Context, logger *slog.Logger, runErr error, st state.RunState, input domain.RunInput) {
	if err := a.dispatcher.Finalize(ctx, runErr, st, input); err != nil {
		logger.Warn("run finalization hook failed", logging.Error(err))
	}
}

// finish records the outcome of r unless a newer run replaced it
func (a *Agent) finish(r *run, status Status, st state.RunState, keepState bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current != r || a.status != StatusRunning {
		return
	}
	a.status = status
	if keepState {
		a.last = st
	}
}
