// Package logger builds the service's slog loggers and records security events.
package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

const redacted = "[REDACTED]"

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values fall back to info.
func ParseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info", "":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// New returns a logger writing JSON in production and text elsewhere.
// Attributes whose key looks like a credential are redacted.
func New(w io.Writer, env, level string) *slog.Logger {
	lvl := new(slog.LevelVar)
	parsed, ok := ParseLevel(level)
	lvl.Set(parsed)

	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if isSensitiveKey(strings.ToLower(a.Key)) {
				return slog.String(a.Key, redacted)
			}
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	}

	var h slog.Handler
	if env == "production" || env == "prod" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(h)
	if !ok {
		logger.Warn("invalid log level, using info", slog.String("value", level))
	}
	return logger
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
