// Package logger builds the slog.Logger shared by the CLI, the HTTP server
// and the listing pipeline.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New creates a *slog.Logger writing to stderr.
// Level: "debug", "info", "warn", "error" (default: "info").
// Format: "json" or "text" (default: "text").
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter creates a *slog.Logger writing to w.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// Discard returns a logger that drops everything. Used as the zero value
// for components constructed without a logger in tests.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// Component tags l with the name of the subsystem emitting records.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

// ParseLevel converts a level string to slog.Level, case-insensitively.
// "warning" is accepted as an alias for "warn". Everything else is LevelInfo.
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

// ValidateFormat reports an error for anything other than text or json.
// An empty format is valid and means text.
func ValidateFormat(format string) error {
	switch strings.ToLower(format) {
	case "", FormatText, FormatJSON:
		return nil
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}
}
