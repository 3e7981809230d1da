package logging

import (
	"log/slog"
	"os"
)

// New creates the process logger with JSON output.
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// WithComponent tags a derived logger with the owning subsystem name.
func WithComponent(logger *slog.Logger, name string) *slog.Logger {
	return logger.With("component", name)
}
