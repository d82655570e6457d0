// Package logger provides structured logging setup for agentgraph.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"github.com/Strob0t/agentgraph/internal/config"
)

// New creates a *slog.Logger from the given Logging config.
// Output is JSON to stdout with a "service" attribute on every record.
// When cfg.Async is set, records pass through an AsyncHandler; the returned
// Closer flushes it and must be called before exit.
func New(cfg config.Logging) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	handler = &requestIDHandler{inner: handler}

	var closer Closer = nopCloser{}
	if cfg.Async {
		buffer, workers := cfg.AsyncBuffer, cfg.AsyncWorkers
		if buffer < 1 {
			buffer = 10000
		}
		if workers < 1 {
			workers = 1
		}
		ah := NewAsyncHandler(handler, buffer, workers)
		handler, closer = ah, ah
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
