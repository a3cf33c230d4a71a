package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"agui-stream/internal/config"
	"agui-stream/internal/logging"
	"agui-stream/internal/transport/connectrpc"
	"agui-stream/internal/transport/sse"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// EndpointSSE is the endpoint for the streamed HTTP transport (SSE or protobuf frames)
	EndpointSSE = "/sse"
	// EndpointConnect is a short alias for the Connect RPC procedure
	EndpointConnect = "/connect"
	// EndpointMetrics serves Prometheus metrics
	EndpointMetrics = "/metrics"
	// EndpointHealth answers liveness probes
	EndpointHealth = "/healthz"
)

// Server represents the HTTP server
type Server struct {
	httpServer     *http.Server
	connectHandler *connectrpc.Handler
	logger         *slog.Logger
}

type Option func(*Server)

// WithConnect mounts the Connect RPC transport
func WithConnect(h *connectrpc.Handler) Option {
	return func(s *Server) { s.connectHandler = h }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new server instance with multiple transport endpoints
func New(cfg *config.Config, sseHandler *sse.Handler, gatherer prometheus.Gatherer, opts ...Option) *Server {
	s := &Server{logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(logging.Component("server"))

	mux := http.NewServeMux()

	// SSE endpoint (explicit) and root
	mux.HandleFunc(EndpointSSE, sseHandler.HandleAgentRequest)
	mux.HandleFunc("/{$}", sseHandler.HandleAgentRequest)

	// Connect RPC endpoint
	if s.connectHandler != nil {
		path, handler := s.connectHandler.Route()
		mux.Handle(path, handler)
		// Also register explicit endpoint for convenience
		mux.Handle(EndpointConnect, handler)
	}

	if gatherer != nil {
		mux.Handle(EndpointMetrics, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc(EndpointHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})

	s.httpServer = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           CORS(cfg.CORSOrigin)(Logging(s.logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, middleware included
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start starts the HTTP server
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	addr := ln.Addr().String()
	s.logger.Info("starting AG-UI server", slog.String("addr", addr))
	s.logger.Info("SSE endpoint", slog.String("url", "http://"+addr+EndpointSSE))
	if s.connectHandler != nil {
		s.logger.Info("Connect RPC endpoint", slog.String("url", "http://"+addr+connectrpc.Procedure))
	} else {
		s.logger.Info("Connect RPC endpoint not configured")
	}
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ShutdownTimeout shuts down the server with a default timeout
func (s *Server) ShutdownTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
