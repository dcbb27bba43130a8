// Package logging configures the process-wide slog logger.
//
// Usage:
//
//	logger := logging.Setup("json", "info")   // production
//	logger := logging.Setup("text", "debug")  // colored dev output via tint
//
// An empty level falls back to the LOG_LEVEL environment variable.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup builds a logger for the given format and level and installs it as the
// slog default.
func Setup(format, level string) *slog.Logger {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	logger := slog.New(NewHandler(format, ParseLevel(level), nil))
	slog.SetDefault(logger)
	return logger
}

// NewHandler returns a JSON handler on stdout, or a tint handler on stderr for
// format "text". w overrides the destination when non-nil.
func NewHandler(format string, level slog.Level, w io.Writer) slog.Handler {
	if strings.EqualFold(format, "text") {
		if w == nil {
			w = os.Stderr
		}
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			AddSource:  level == slog.LevelDebug,
		})
	}
	if w == nil {
		w = os.Stdout
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
