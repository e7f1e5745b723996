package telemetry

import (
	"log/slog"
	"os"
	"sync"
)

var (
	baseOnce sync.Once
	base     *slog.Logger
)

// Base returns the process-wide structured logger, initialized once at
// first use with a text handler writing to stderr. Every call site that
// needs a scoped logger should derive one from this with With(...)
// rather than constructing a new handler.
func Base() *slog.Logger {
	baseOnce.Do(func() {
		base = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	})
	return base
}

// SetBase overrides the process-wide logger. Tests use this to capture
// log output or silence it.
func SetBase(l *slog.Logger) {
	baseOnce.Do(func() {})
	base = l
}

// ForRun returns a logger scoped to one review run's correlation ID.
func ForRun(correlationID string) *slog.Logger {
	return Base().With("correlation_id", correlationID)
}

// ForAgent further scopes a run logger to one agent invocation.
func ForAgent(l *slog.Logger, agentName, skillID string) *slog.Logger {
	return l.With("agent", agentName, "skill", skillID)
}
