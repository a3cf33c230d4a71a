package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"agui-stream/internal/agent"
	"agui-stream/internal/agui"
	"agui-stream/internal/config"
	"agui-stream/internal/logging"
	"agui-stream/internal/metrics"
	"agui-stream/internal/provider"
	adksource "agui-stream/internal/provider/adk"
	"agui-stream/internal/server"
	"agui-stream/internal/session"
	"agui-stream/internal/transport/connectrpc"
	"agui-stream/internal/transport/sse"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	source, err := newSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	adapter := agui.NewAdapter(source,
		agui.WithTimeout(cfg.RunTimeout),
		agui.WithMetrics(m),
		agui.WithLogger(logger),
	)
	srv := server.New(cfg,
		sse.NewHandler(adapter, sse.WithHeartbeat(cfg.Heartbeat), sse.WithMetrics(m), sse.WithLogger(logger)),
		reg,
		server.WithConnect(connectrpc.NewHandler(adapter, connectrpc.WithMetrics(m), connectrpc.WithLogger(logger))),
		server.WithLogger(logger),
	)

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return err
	}

	logger.Info("starting agent server", slog.String("provider", cfg.Provider), slog.String("app", cfg.AppName))
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(ln) })
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		return srv.ShutdownTimeout(shutdownTimeout)
	})
	if cfg.StateTTL > 0 {
		g.Go(func() error {
			sweepState(ctx, adapter, cfg.StateTTL, logger)
			return nil
		})
	}
	return g.Wait()
}

// sweepState drops thread state untouched for longer than ttl
func sweepState(ctx context.Context, adapter *agui.Adapter, ttl time.Duration, logger *slog.Logger) {
	t := time.NewTicker(max(ttl/4, time.Second))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := adapter.Store().Cleanup(ttl); n > 0 {
				logger.Debug("dropped idle thread state", slog.Int("threads", n))
			}
		}
	}
}

func newSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (provider.Source, error) {
	switch cfg.Provider {
	case config.ProviderScript:
		script, err := provider.LoadScript(cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load script: %w", err)
		}
		return script, nil
	case config.ProviderADK:
		a, err := agent.New(ctx, agent.Options{APIKey: cfg.GoogleAPIKey, Model: cfg.Model})
		if err != nil {
			return nil, fmt.Errorf("failed to create agent: %w", err)
		}
		return adksource.New(a, session.NewManager(cfg.AppName), adksource.WithLogger(logger)), nil
	default:
		return provider.Echo{}, nil
	}
}
