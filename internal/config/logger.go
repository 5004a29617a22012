package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the application logger: JSON in production, text otherwise.
func NewLogger(a App, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(a.LogLevel)}
	var h slog.Handler
	if a.Production() {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("env", a.Env)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
