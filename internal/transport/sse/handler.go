package sse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"agui-stream/internal/agui"
	"agui-stream/internal/domain"
	"agui-stream/internal/encoding"
	"agui-stream/internal/events"
	"agui-stream/internal/logging"
	"agui-stream/internal/metrics"
	"agui-stream/internal/transport"
	json "github.com/goccy/go-json"
)

// MaxRequestBody bounds the size of a run input
const MaxRequestBody = 4 << 20

// Handler handles HTTP requests for the AG-UI protocol. The response encoding is chosen
// from the Accept header: SSE by default, length-prefixed protobuf on request.
// Only responsible for serialization; protocol logic is in agui.
type Handler struct {
	adapter   *agui.Adapter
	metrics   *metrics.Metrics
	heartbeat time.Duration
	logger    *slog.Logger
}

type Option func(*Handler)

// WithHeartbeat sends an SSE comment every d while a run is quiet. Zero disables it.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) { h.heartbeat = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates a new HTTP streaming handler
func NewHandler(adapter *agui.Adapter, opts ...Option) *Handler {
	h := &Handler{adapter: adapter, logger: slog.Default()}
	for _, o := range opts {
		o(h)
	}
	h.logger = h.logger.With(logging.Component("sse"))
	return h
}

// frameSender implements transport.EventSender for an HTTP response
type frameSender struct {
	mu      sync.Mutex
	writer  *bufio.Writer
	rc      *http.ResponseController
	codec   encoding.Codec
	metrics *metrics.Metrics
}

func (s *frameSender) SendEvent(ev events.Event) error {
	frame, err := s.codec.EncodeFrame(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := s.write(frame); err != nil {
		return err
	}
	s.metrics.EventSent(string(ev.Type()), transportLabel(s.codec))
	return nil
}

func (s *frameSender) SendRunError(runID string, err error) error {
	return s.SendEvent(transport.RunError(runID, err))
}

func (s *frameSender) write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writer.Write(p); err != nil {
		return err
	}
	if err := s.writer.Flush(); err != nil {
		return err
	}
	return s.rc.Flush()
}

func transportLabel(c encoding.Codec) string {
	if c == encoding.Proto {
		return "proto"
	}
	return "sse"
}

// HandleAgentRequest handles AG-UI protocol requests
func (h *Handler) HandleAgentRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var input domain.RunInput
	if err := json.NewDecoder(io.LimitReader(r.Body, MaxRequestBody)).Decode(&input); err != nil {
		h.logger.DebugContext(r.Context(), "error decoding request", logging.Error(err))
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Validate input early (fail fast)
	if err := agui.Prepare(&input); err != nil {
		h.logger.DebugContext(r.Context(), "validation error", logging.Error(err))
		http.Error(w, fmt.Sprintf("Validation failed: %v", err), http.StatusBadRequest)
		return
	}

	codec := encoding.Negotiate(r.Header.Get("Accept"))
	w.Header().Set("Content-Type", codec.ContentType())
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sender := &frameSender{
		writer:  bufio.NewWriter(w),
		rc:      http.NewResponseController(w),
		codec:   codec,
		metrics: h.metrics,
	}

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if h.heartbeat > 0 && codec == encoding.SSE {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.keepAlive(ctx, sender)
		}()
	}

	// Delegate protocol logic to adapter; errors were already sent as RUN_ERROR
	if err := h.adapter.RunAgentProtocol(ctx, input, sender); err != nil {
		h.logger.DebugContext(ctx, "run ended with error", logging.Run(input.ThreadID, input.RunID), logging.Error(err))
	}
}

func (h *Handler) keepAlive(ctx context.Context, s *frameSender) {
	t := time.NewTicker(h.heartbeat)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := s.write([]byte(": ping\n\n")); err != nil {
				return
			}
		}
	}
}
