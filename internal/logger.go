package internal

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger: text output in development, JSON
// everywhere else. Unknown levels fall back to info.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts).WithAttrs([]slog.Attr{
			slog.String("service", "quotachat"),
		})
	}

	return slog.New(handler)
}
