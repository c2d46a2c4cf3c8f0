// Package smtpsink is an in-process SMTP server that captures every message it accepts.
// It backs the development sink and the mailer's round-trip tests.
package smtpsink

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/emersion/go-smtp"
)

// Security limits
const (
	DefaultMaxMessageSize = 25 * 1024 * 1024 // 25 MB
	DefaultMaxRecipients  = 100
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxLineLength  = 2000
)

// Backend implements the go-smtp Backend interface
type Backend struct {
	store    *messageStore
	username string
	password string
	rejects  map[string]struct{}
	logger   *slog.Logger
}

// BackendConfig holds configuration for the sink backend
type BackendConfig struct {
	// Username and Password enable PLAIN auth checking. Empty accepts any credentials.
	Username string
	Password string
	// Reject lists recipient addresses answered with 550.
	Reject []string
	// Capacity caps retained messages; the oldest are dropped first.
	Capacity int
	Logger   *slog.Logger
}

// NewBackend creates a new sink backend
func NewBackend(cfg *BackendConfig) *Backend {
	rejects := make(map[string]struct{}, len(cfg.Reject))
	for _, addr := range cfg.Reject {
		rejects[normalizeAddress(addr)] = struct{}{}
	}
	return &Backend{
		store:    newMessageStore(cfg.Capacity),
		username: cfg.Username,
		password: cfg.Password,
		rejects:  rejects,
		logger:   cfg.Logger,
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	if b.logger != nil {
		b.logger.Debug("new SMTP connection", slog.String("remote_addr", c.Conn().RemoteAddr().String()))
	}
	return NewSession(b), nil
}

// Messages returns captured messages, oldest first
func (b *Backend) Messages() []Message {
	return b.store.list()
}

// Reset drops every captured message
func (b *Backend) Reset() {
	b.store.clear()
}

// ServerConfig holds settings for the SMTP listener
type ServerConfig struct {
	Addr           string
	Domain         string
	MaxMessageSize int64
	MaxRecipients  int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowInsecure  bool
	TLSConfig      *tls.Config
}

// NewServer creates a go-smtp server around the backend, filling unset limits with defaults
func NewServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)

	s.Addr = cfg.Addr
	s.Domain = cfg.Domain
	if s.Domain == "" {
		s.Domain = "localhost"
	}

	s.MaxMessageBytes = DefaultMaxMessageSize
	if cfg.MaxMessageSize > 0 {
		s.MaxMessageBytes = cfg.MaxMessageSize
	}

	s.MaxRecipients = DefaultMaxRecipients
	if cfg.MaxRecipients > 0 {
		s.MaxRecipients = cfg.MaxRecipients
	}

	s.ReadTimeout = DefaultReadTimeout
	if cfg.ReadTimeout > 0 {
		s.ReadTimeout = cfg.ReadTimeout
	}

	s.WriteTimeout = DefaultWriteTimeout
	if cfg.WriteTimeout > 0 {
		s.WriteTimeout = cfg.WriteTimeout
	}

	s.AllowInsecureAuth = cfg.AllowInsecure
	if cfg.TLSConfig != nil {
		s.TLSConfig = cfg.TLSConfig
	}

	s.MaxLineLength = DefaultMaxLineLength

	return s
}
