// Package agui runs the server side of the AG-UI protocol. It owns the run lifecycle
// and is shared by all transports; transports only serialize the events it produces.
package agui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"agui-stream/internal/logging"
	"agui-stream/internal/metrics"
	"agui-stream/internal/provider"
	"agui-stream/internal/state"
	"agui-stream/internal/transport"
	"github.com/alphadose/haxmap"
)

// DefaultTimeout bounds a single run
const DefaultTimeout = 60 * time.Second

// ErrRunInFlight is returned when a run id is already streaming
var ErrRunInFlight = errors.New("run is already in progress")

// InputError reports a run input that failed validation
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return "invalid run input: " + e.Err.Error() }
func (e *InputError) Unwrap() error { return e.Err }
func (e *InputError) ErrorCode() string { return "INVALID_INPUT" }

type inFlightError struct{ runID string }

func (e *inFlightError) Error() string { return fmt.Sprintf("run %s is already in progress", e.runID) }
func (e *inFlightError) Is(target error) bool { return target == ErrRunInFlight }
func (e *inFlightError) ErrorCode() string { return "RUN_IN_PROGRESS" }

// Adapter runs the protocol for one provider
type Adapter struct {
	source   provider.Source
	store    *state.Store
	inFlight *haxmap.Map[string, time.Time]
	metrics  *metrics.Metrics
	timeout  time.Duration
	logger   *slog.Logger
}

type Option func(*Adapter)

// WithTimeout sets the run timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithStore shares a thread state store between adapters
func WithStore(s *state.Store) Option {
	return func(a *Adapter) { a.store = s }
}

// NewAdapter creates an adapter streaming responses from source
func NewAdapter(source provider.Source, opts ...Option) *Adapter {
	a := &Adapter{
		source:   source,
		store:    state.NewStore(),
		inFlight: haxmap.New[string, time.Time](),
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	a.logger = a.logger.With(logging.Component("agui"))
	return a
}

// Store returns the thread state store
func (a *Adapter) Store() *state.Store { return a.store }

// InFlight returns the number of runs currently streaming
func (a *Adapter) InFlight() int { return int(a.inFlight.Len()) }

// Prepare fills in missing thread and run ids and validates input
func Prepare(input *domain.RunInput) error {
	if input.ThreadID == "" {
		input.ThreadID = events.GenerateThreadID()
	}
	if input.RunID == "" {
		input.RunID = events.GenerateRunID()
	}
	if err := input.Validate(); err != nil {
		return &InputError{Err: err}
	}
	return nil
}

// RunAgentProtocol streams one run to sender: RUN_STARTED, a STATE_SNAPSHOT of the
// thread state, the provider's response and RUN_FINISHED. Failures after RUN_STARTED end
// the stream with RUN_ERROR after closing any open message or tool call. An input without
// messages only synchronizes state.
//
// The returned error is the reason the run did not finish. It has already been reported
// to the client when it could be.
func (a *Adapter) RunAgentProtocol(ctx context.Context, input domain.RunInput, sender transport.EventSender) error {
	input = input.Clone()
	if err := Prepare(&input); err != nil {
		a.metrics.RunRejected()
		a.sendError(sender, input.RunID, err)
		return err
	}

	if _, loaded := a.inFlight.GetOrSet(input.RunID, time.Now()); loaded {
		err := &inFlightError{runID: input.RunID}
		a.metrics.RunRejected()
		a.sendError(sender, input.RunID, err)
		return err
	}
	defer a.inFlight.Del(input.RunID)

	logger := a.logger.With(logging.Run(input.ThreadID, input.RunID))
	start := time.Now()
	a.metrics.RunStarted()
	outcome := metrics.OutcomeFinished
	defer func() {
		a.metrics.RunEnded(outcome, time.Since(start))
		logger.InfoContext(ctx, "run ended", slog.String("outcome", outcome), slog.Duration("elapsed", time.Since(start)))
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	input.State = a.store.Merge(input.ThreadID, input.State)

	err := a.run(ctx, logger, input, sender)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		outcome = metrics.OutcomeCancelled
	default:
		outcome = metrics.OutcomeErrored
	}
	return err
}

func (a *Adapter) run(ctx context.Context, logger *slog.Logger, input domain.RunInput, sender transport.EventSender) error {
	if err := sender.SendEvent(events.Must(events.NewRunStartedEvent(input.ThreadID, input.RunID))); err != nil {
		return fmt.Errorf("send RUN_STARTED: %w", err)
	}
	if len(input.State) > 0 || len(input.Messages) == 0 {
		if err := sender.SendEvent(events.Must(events.NewStateSnapshotEvent(input.State))); err != nil {
			return fmt.Errorf("send STATE_SNAPSHOT: %w", err)
		}
	}

	if len(input.Messages) > 0 {
		logger.DebugContext(ctx, "streaming response", slog.Int("messages", len(input.Messages)))
		tr := NewTranslator()
		for d, err := range a.source.Stream(ctx, input) {
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				logger.WarnContext(ctx, "provider failed", logging.Error(err))
				_ = a.sendAll(sender, tr.Close())
				a.sendError(sender, input.RunID, err)
				return err
			}
			if err := a.sendAll(sender, tr.Delta(d)); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			_ = a.sendAll(sender, tr.Close())
			a.sendError(sender, input.RunID, err)
			return err
		}
		if err := a.sendAll(sender, tr.Finish()); err != nil {
			return err
		}
	}

	if err := sender.SendEvent(events.Must(events.NewRunFinishedEvent(input.ThreadID, input.RunID))); err != nil {
		return fmt.Errorf("send RUN_FINISHED: %w", err)
	}
	return nil
}

func (a *Adapter) sendAll(sender transport.EventSender, evs []events.Event) error {
	for _, ev := range evs {
		if err := sender.SendEvent(ev); err != nil {
			return fmt.Errorf("send %s: %w", ev.Type(), err)
		}
	}
	return nil
}

func (a *Adapter) sendError(sender transport.EventSender, runID string, err error) {
	if serr := sender.SendRunError(runID, err); serr != nil {
		a.logger.Debug("could not report run error", logging.Error(serr))
	}
}
