package logger

import (
	"log/slog"
	"time"
)

// SecurityLogger records security-relevant events on the API surface.
// Credential values are never written.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger wraps an existing logger, tagging entries with component=security.
func NewSecurityLogger(base *slog.Logger) *SecurityLogger {
	if base == nil {
		base = slog.Default()
	}
	return &SecurityLogger{logger: base.With(slog.String("component", "security"))}
}

// NewSecurityLoggerWithHandler creates a SecurityLogger with a custom handler.
func NewSecurityLoggerWithHandler(handler slog.Handler) *SecurityLogger {
	return &SecurityLogger{logger: slog.New(handler)}
}

// AuthFailure logs a rejected API key. The presented key is not logged.
func (s *SecurityLogger) AuthFailure(ip, path, reason string) {
	s.warn("auth_failure", ip,
		slog.String("path", path),
		slog.String("reason", reason),
	)
}

// RateLimitExceeded logs when a client exceeds rate limits.
func (s *SecurityLogger) RateLimitExceeded(ip, path string) {
	s.warn("rate_limit", ip, slog.String("path", path))
}

// InvalidOrigin logs a rejected WebSocket upgrade.
func (s *SecurityLogger) InvalidOrigin(ip, origin string) {
	s.warn("invalid_origin", ip, slog.String("origin", origin))
}

// PathTraversalAttempt logs an archive lookup that tried to escape the report directory.
func (s *SecurityLogger) PathTraversalAttempt(ip, path, attemptedPath string) {
	s.warn("path_traversal", ip,
		slog.String("path", path),
		slog.String("attempted_path", attemptedPath),
	)
}

// HeaderInjectionAttempt logs a send request whose subject carried line breaks.
func (s *SecurityLogger) HeaderInjectionAttempt(ip, field string) {
	s.warn("header_injection", ip, slog.String("field", field))
}

// SecurityEvent logs a generic security event, dropping sensitive detail keys.
func (s *SecurityLogger) SecurityEvent(eventType, ip string, details map[string]string) {
	attrs := make([]any, 0, len(details))
	for k, v := range details {
		if isSensitiveKey(k) {
			continue
		}
		attrs = append(attrs, slog.String(k, v))
	}
	s.warn(eventType, ip, attrs...)
}

// GetLogger returns the underlying slog.Logger for use with middleware.
func (s *SecurityLogger) GetLogger() *slog.Logger {
	return s.logger
}

func (s *SecurityLogger) warn(eventType, ip string, attrs ...any) {
	base := []any{
		slog.String("event_type", eventType),
		slog.String("ip", ip),
		slog.Time("timestamp", time.Now().UTC()),
	}
	s.logger.Warn("security_event", append(base, attrs...)...)
}

var sensitiveKeys = map[string]bool{
	"password":       true,
	"email_password": true,
	"imap_password":  true,
	"api_key":        true,
	"apikey":         true,
	"groq_api_key":   true,
	"token":          true,
	"access_token":   true,
	"refresh_token":  true,
	"client_secret":  true,
	"secret":         true,
	"authorization":  true,
	"auth":           true,
	"credential":     true,
	"credentials":    true,
	"cookie":         true,
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[key]
}
