package smtpsink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-smtp"
)

// Sink runs a capturing SMTP server on a local listener
type Sink struct {
	backend  *Backend
	server   *smtp.Server
	listener net.Listener
	logger   *slog.Logger
	done     chan struct{}
}

// Options configures a Sink
type Options struct {
	Addr     string
	Username string
	Password string
	Reject   []string
	Capacity int
	Logger   *slog.Logger
}

// Start listens on opts.Addr (use "127.0.0.1:0" for an ephemeral port) and serves in the background
func Start(opts Options) (*Sink, error) {
	if opts.Addr == "" {
		opts.Addr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", opts.Addr, err)
	}

	backend := NewBackend(&BackendConfig{
		Username: opts.Username,
		Password: opts.Password,
		Reject:   opts.Reject,
		Capacity: opts.Capacity,
		Logger:   opts.Logger,
	})
	server := NewServer(backend, &ServerConfig{
		Addr:          ln.Addr().String(),
		AllowInsecure: true,
	})

	s := &Sink{
		backend:  backend,
		server:   server,
		listener: ln,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := server.Serve(ln); err != nil && !errors.Is(err, smtp.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
			if s.logger != nil {
				s.logger.Error("SMTP sink stopped", slog.Any("error", err))
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("SMTP sink listening", slog.String("addr", s.Addr()))
	}
	return s, nil
}

// Addr returns the listener address
func (s *Sink) Addr() string {
	return s.listener.Addr().String()
}

// HostPort splits Addr for mailer configuration
func (s *Sink) HostPort() (string, int) {
	tcp := s.listener.Addr().(*net.TCPAddr)
	return tcp.IP.String(), tcp.Port
}

// Messages returns every captured message, oldest first
func (s *Sink) Messages() []Message {
	return s.backend.Messages()
}

// Reset drops captured messages
func (s *Sink) Reset() {
	s.backend.Reset()
}

// Shutdown stops accepting connections and waits for open sessions to end
func (s *Sink) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}

// Close stops the server immediately
func (s *Sink) Close() error {
	err := s.server.Close()
	<-s.done
	return err
}
