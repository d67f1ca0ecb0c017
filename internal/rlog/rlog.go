// Package rlog builds reflo's structured logger, matching the teacher's
// log/slog usage (logger = slog.Default() when unset, .With() for
// context, leveled text/JSON handlers per config.LogFormat).
package rlog

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a slog.Logger writing to stderr at level, in either "text"
// or "json" format.
func New(level, format string) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
