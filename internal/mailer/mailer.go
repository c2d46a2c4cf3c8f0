// Package mailer delivers mail over authenticated SMTP and reports every outcome as a SendResult.
package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/jaytaylor/html2text"
	"github.com/jhillyerd/enmime"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/validator"
)

// Security modes
const (
	SecurityAuto     = "auto"
	SecurityTLS      = "tls"
	SecuritySTARTTLS = "starttls"
	SecurityNone     = "none"
)

// DefaultTimeout bounds one complete SMTP exchange
const DefaultTimeout = 30 * time.Second

const maxSubjectLength = 998

// Sender delivers email
type Sender interface {
	Send(ctx context.Context, to, subject, body string, isHTML bool) models.SendResult
	SendTemplated(ctx context.Context, to, subject, templateName string, vars interface{}) models.SendResult
	Configured() bool
}

// TemplateRenderer renders a named template to HTML
type TemplateRenderer interface {
	RenderTemplate(name string, data interface{}) (string, error)
}

// Options configures an SMTPSender
type Options struct {
	Host     string
	Port     int
	Security string
	Username string
	Password string
	// FromName is the display name on outgoing mail
	FromName  string
	LocalName string
	Timeout   time.Duration
	TLSConfig *tls.Config
	Renderer  TemplateRenderer
	Logger    *slog.Logger
	Now       func() time.Time
}

// SMTPSender sends one message per connection. It authenticates on every call.
type SMTPSender struct {
	host      string
	port      int
	security  string
	username  string
	password  string
	fromName  string
	localName string
	timeout   time.Duration
	tlsConfig *tls.Config
	renderer  TemplateRenderer
	logger    *slog.Logger
	now       func() time.Time
}

// NewSMTPSender creates a new SMTPSender
func NewSMTPSender(opts Options) *SMTPSender {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.LocalName == "" {
		opts.LocalName = "localhost"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	tlsConfig := opts.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: opts.Host, MinVersion: tls.VersionTLS12}
	}

	return &SMTPSender{
		host:      opts.Host,
		port:      opts.Port,
		security:  ResolveSecurity(opts.Security, opts.Port),
		username:  opts.Username,
		password:  opts.Password,
		fromName:  opts.FromName,
		localName: opts.LocalName,
		timeout:   opts.Timeout,
		tlsConfig: tlsConfig,
		renderer:  opts.Renderer,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// ResolveSecurity maps "auto" to a concrete mode from the port: 465 is implicit TLS, 587 is STARTTLS.
func ResolveSecurity(mode string, port int) string {
	switch strings.ToLower(mode) {
	case SecurityTLS, SecuritySTARTTLS, SecurityNone:
		return strings.ToLower(mode)
	}
	switch port {
	case 465:
		return SecurityTLS
	case 587:
		return SecuritySTARTTLS
	default:
		return SecurityNone
	}
}

// Configured reports whether host and credentials are set
func (s *SMTPSender) Configured() bool {
	return s.host != "" && s.username != "" && s.password != ""
}

// Send delivers body to a single recipient
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string, isHTML bool) models.SendResult {
	if !s.Configured() {
		return s.report(to, subject, notConfigured())
	}
	if err := validator.ValidateEmail(to); err != nil {
		return s.report(to, subject, &stageError{stage: stageRecipient, err: fmt.Errorf("%w: %v", apperrors.ErrRecipientRejected, err)})
	}

	msg, err := s.buildMessage(to, subject, body, isHTML)
	if err != nil {
		return s.report(to, subject, &stageError{stage: stageBuild, err: err})
	}

	return s.report(to, subject, s.transmit(ctx, to, msg))
}

// SendTemplated renders templateName with vars and sends the result as HTML
func (s *SMTPSender) SendTemplated(ctx context.Context, to, subject, templateName string, vars interface{}) models.SendResult {
	if !s.Configured() {
		return s.report(to, subject, notConfigured())
	}
	if s.renderer == nil {
		return s.report(to, subject, &stageError{stage: stageTemplate, err: fmt.Errorf("%w: no renderer", apperrors.ErrTemplate)})
	}

	body, err := s.renderer.RenderTemplate(templateName, vars)
	if err != nil {
		return s.report(to, subject, &stageError{stage: stageTemplate, err: err})
	}
	return s.Send(ctx, to, subject, body, true)
}

func (s *SMTPSender) report(to, subject string, err error) models.SendResult {
	result := classify(err, to)
	if result.Success {
		s.logger.Info("email sent", slog.String("to", to), slog.String("subject", subject))
	} else {
		s.logger.Warn("email not sent",
			slog.String("to", to),
			slog.String("kind", string(result.Kind)),
			slog.Any("error", err))
	}
	return result
}

func (s *SMTPSender) buildMessage(to, subject, body string, isHTML bool) ([]byte, error) {
	subject = validator.SanitizeString(subject, maxSubjectLength)

	b := enmime.Builder().
		From(s.fromName, s.username).
		To("", to).
		Subject(subject).
		Date(s.now()).
		Header("Message-Id", fmt.Sprintf("<%s@%s>", uuid.New().String(), domainOf(s.username)))

	if isHTML {
		text, err := html2text.FromString(body, html2text.Options{OmitLinks: true})
		if err != nil {
			return nil, fmt.Errorf("failed to derive text alternative: %w", err)
		}
		b = b.HTML([]byte(body)).Text([]byte(text))
	} else {
		b = b.Text([]byte(body))
	}

	part, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *SMTPSender) transmit(ctx context.Context, to string, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &stageError{stage: stageConnect, err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	var c *smtp.Client
	switch s.security {
	case SecurityTLS:
		c = smtp.NewClient(tls.Client(conn, s.tlsConfig))
		err = c.Hello(s.localName)
	case SecuritySTARTTLS:
		c, err = smtp.NewClientStartTLS(conn, s.tlsConfig)
	default:
		c = smtp.NewClient(conn)
		err = c.Hello(s.localName)
	}
	if err != nil {
		if c != nil {
			_ = c.Close()
		} else {
			_ = conn.Close()
		}
		return &stageError{stage: stageConnect, err: err}
	}
	defer c.Close()

	if ok, _ := c.Extension("AUTH"); !ok {
		return &stageError{stage: stageAuth, err: fmt.Errorf("server %s does not offer AUTH", addr)}
	}
	if err := c.Auth(sasl.NewPlainClient("", s.username, s.password)); err != nil {
		return &stageError{stage: stageAuth, err: err}
	}

	if err := c.Mail(s.username, nil); err != nil {
		return &stageError{stage: stageSend, err: err}
	}
	if err := c.Rcpt(to, nil); err != nil {
		return &stageError{stage: stageRecipient, err: err}
	}

	w, err := c.Data()
	if err != nil {
		return &stageError{stage: stageSend, err: err}
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return &stageError{stage: stageSend, err: err}
	}
	if err := w.Close(); err != nil {
		return &stageError{stage: stageSend, err: err}
	}

	if err := c.Quit(); err != nil {
		s.logger.Debug("SMTP QUIT failed after delivery", slog.Any("error", err))
	}
	return nil
}

func domainOf(addr string) string {
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}
