package connectrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"agui-stream/internal/agui"
	"agui-stream/internal/encoding"
	"agui-stream/internal/events"
	"agui-stream/internal/logging"
	"agui-stream/internal/metrics"
	"agui-stream/internal/transport"
	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

// Procedure is the server-streaming procedure serving runs. Requests carry the run
// input and responses carry one event each, both as google.protobuf.Struct.
const Procedure = "/agui.v1.AGUIService/RunAgent"

// Handler handles Connect RPC requests for the AG-UI protocol
// Only responsible for Protobuf serialization - protocol logic is in agui
type Handler struct {
	adapter *agui.Adapter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Handler)

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a new Connect RPC handler
func NewHandler(adapter *agui.Adapter, opts ...Option) *Handler {
	h := &Handler{adapter: adapter, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	h.logger = h.logger.With(logging.Component("connect"))
	return h
}

// Route returns the path and HTTP handler to mount on a mux
func (h *Handler) Route(opts ...connect.HandlerOption) (string, http.Handler) {
	return Procedure, connect.NewServerStreamHandler(Procedure, h.RunAgent, opts...)
}

// connectEventSender implements transport.EventSender for Connect RPC transport
type connectEventSender struct {
	stream  *connect.ServerStream[structpb.Struct]
	metrics *metrics.Metrics
}

func (c *connectEventSender) SendEvent(ev events.Event) error {
	msg, err := encoding.ToStruct(ev)
	if err != nil {
		return fmt.Errorf("failed to convert event: %w", err)
	}
	if err := c.stream.Send(msg); err != nil {
		return err
	}
	c.metrics.EventSent(string(ev.Type()), "connect")
	return nil
}

func (c *connectEventSender) SendRunError(runID string, err error) error {
	return c.SendEvent(transport.RunError(runID, err))
}

// RunAgent implements the AGUIService.RunAgent RPC method
func (h *Handler) RunAgent(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
	stream *connect.ServerStream[structpb.Struct],
) error {
	input, err := encoding.InputFromStruct(req.Msg)
	if err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("failed to convert request: %w", err))
	}

	// Validate input early (fail fast)
	if err := agui.Prepare(&input); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	sender := &connectEventSender{stream: stream, metrics: h.metrics}
	if err := h.adapter.RunAgentProtocol(ctx, input, sender); err != nil {
		h.logger.DebugContext(ctx, "run ended with error", logging.Run(input.ThreadID, input.RunID), logging.Error(err))
		return connect.NewError(code(err), err)
	}
	return nil
}

func code(err error) connect.Code {
	var ierr *agui.InputError
	switch {
	case errors.As(err, &ierr):
		return connect.CodeInvalidArgument
	case errors.Is(err, agui.ErrRunInFlight):
		return connect.CodeAlreadyExists
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	default:
		return connect.CodeInternal
	}
}
