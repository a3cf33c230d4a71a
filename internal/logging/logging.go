// Package logging builds the slog logger used across the module. Records are written by
// zerolog, as a console stream for terminals or as JSON lines for collectors.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/phsym/zeroslog"
	"github.com/rs/zerolog"
)

// Options selects the level and output format
type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// New returns a logger writing through zerolog
func New(opts Options) *slog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !strings.EqualFold(opts.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Stamp}
	}
	log := zerolog.New(out).With().Timestamp().Logger()
	return slog.New(zeroslog.NewHandler(log, &zeroslog.HandlerOptions{Level: ParseLevel(opts.Level)}))
}

// Setup builds a logger with New and installs it as the slog default
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Error returns an attribute holding the error message
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Component names the part of the system a logger belongs to
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Run groups the ids of a run
func Run(threadID, runID string) slog.Attr {
	return slog.Group("run", slog.String("thread_id", threadID), slog.String("run_id", runID))
}

// Discard returns a logger that drops every record
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
