// Package dispatch delivers events to subscribers in registration order and folds the
// mutations they return into the run state.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"agui-stream/internal/state"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Handle identifies a registration
type Handle uint64

// HandlerError is returned when a subscriber fails. Dispatch of the event stops at the
// failing subscriber.
type HandlerError struct {
	Handle Handle
	Event  events.EventType
	Hook   string
	Err    error
}

func (e *HandlerError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("subscriber %d %s on %s: %v", e.Handle, e.Hook, e.Event, e.Err)
	}
	return fmt.Sprintf("subscriber %d %s: %v", e.Handle, e.Hook, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

type registration struct {
	handle Handle
	sub    Subscriber
}

// Dispatcher routes events to its subscribers. Dispatch calls are serialized so that the
// resulting run state only depends on the registration order and the event sequence.
type Dispatcher struct {
	mu   sync.Mutex
	subs *orderedmap.OrderedMap[Handle, Subscriber]
	next Handle

	dispatchMu sync.Mutex
	logger     *slog.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the logger used for handler failures
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// New creates a dispatcher without subscribers
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subs:   orderedmap.New[Handle, Subscriber](),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe registers sub after every existing subscriber
func (d *Dispatcher) Subscribe(sub Subscriber) Handle {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.next++
	d.subs.Set(d.next, sub)
	return d.next
}

// Unsubscribe removes a registration. It may be called from a handler; the removal
// applies from the next event. It reports whether the handle was registered.
func (d *Dispatcher) Unsubscribe(h Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, ok := d.subs.Delete(h)
	return ok
}

// Len returns the number of subscribers
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.subs.Len()
}

func (d *Dispatcher) snapshot() []registration {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs := make([]registration, 0, d.subs.Len())
	for pair := d.subs.Oldest(); pair != nil; pair = pair.Next() {
		regs = append(regs, registration{handle: pair.Key, sub: pair.Value})
	}
	return regs
}

// Dispatch delivers ev to every subscriber and returns the resulting run state.
//
// Each subscriber's OnEvent and kind handler run in registration order and their
// mutations are merged before the next handler runs. Unless a handler stopped
// propagation, the default reducer then folds ev into the state. Subscribers are told
// about changed messages or custom state afterwards. On error the returned state is the
// input state.
func (d *Dispatcher) Dispatch(ctx context.Context, ev events.Event, st state.RunState, input domain.RunInput) (state.RunState, error) {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	regs := d.snapshot()
	cur := st
	var messagesChanged, stateChanged, stopped bool

	apply := func(r registration, hook string, m Mutation) error {
		if m.IsZero() {
			return nil
		}
		next, err := state.Merge(cur, m)
		if err != nil {
			return &HandlerError{Handle: r.handle, Event: ev.Type(), Hook: hook, Err: fmt.Errorf("merge mutation: %w", err)}
		}
		cur = next
		messagesChanged = messagesChanged || m.Messages != nil
		stateChanged = stateChanged || m.State != nil || len(m.Patch) > 0
		stopped = m.StopPropagation
		return nil
	}

	for _, r := range regs {
		if h, ok := r.sub.(EventHandler); ok {
			m, err := h.OnEvent(ctx, ev, Params{State: cur, Input: input})
			if err != nil {
				return st, d.fail(r, ev.Type(), "OnEvent", err)
			}
			if err := apply(r, "OnEvent", m); err != nil {
				return st, err
			}
			if stopped {
				break
			}
		}

		m, ok, err := kindHandler(ctx, r.sub, ev, Params{State: cur, Input: input})
		if !ok {
			continue
		}
		if err != nil {
			return st, d.fail(r, ev.Type(), "handler", err)
		}
		if err := apply(r, "handler", m); err != nil {
			return st, err
		}
		if stopped {
			break
		}
	}

	if !stopped {
		next, err := state.Apply(cur, ev)
		if err != nil {
			return st, err
		}
		cur = next
		msgs, custom := changes(ev.Type())
		messagesChanged = messagesChanged || msgs
		stateChanged = stateChanged || custom
	}

	p := Params{State: cur, Input: input}
	if messagesChanged {
		for _, r := range regs {
			if h, ok := r.sub.(MessagesChangedHandler); ok {
				if err := h.OnMessagesChanged(ctx, p); err != nil {
					return st, d.fail(r, ev.Type(), "OnMessagesChanged", err)
				}
			}
		}
	}
	if stateChanged {
		for _, r := range regs {
			if h, ok := r.sub.(StateChangedHandler); ok {
				if err := h.OnStateChanged(ctx, p); err != nil {
					return st, d.fail(r, ev.Type(), "OnStateChanged", err)
				}
			}
		}
	}
	return cur, nil
}

// Finalize calls OnRunFailed when runErr is non-nil and then OnRunFinalized on every
// subscriber. All hooks run; the first failure is returned.
func (d *Dispatcher) Finalize(ctx context.Context, runErr error, st state.RunState, input domain.RunInput) error {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	p := Params{State: st, Input: input}
	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}
	regs := d.snapshot()
	if runErr != nil {
		for _, r := range regs {
			if h, ok := r.sub.(RunFailedHandler); ok {
				if err := h.OnRunFailed(ctx, runErr, p); err != nil {
					keep(d.fail(r, "", "OnRunFailed", err))
				}
			}
		}
	}
	for _, r := range regs {
		if h, ok := r.sub.(RunFinalizedHandler); ok {
			if err := h.OnRunFinalized(ctx, p); err != nil {
				keep(d.fail(r, "", "OnRunFinalized", err))
			}
		}
	}
	return first
}

func (d *Dispatcher) fail(r registration, t events.EventType, hook string, err error) error {
	herr := &HandlerError{Handle: r.handle, Event: t, Hook: hook, Err: err}
	d.logger.Debug("subscriber failed", slog.Uint64("handle", uint64(r.handle)), slog.String("hook", hook), slog.Any("error", err))
	return herr
}
