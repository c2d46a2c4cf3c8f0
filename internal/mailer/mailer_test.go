package mailer

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/report"
	"github.com/welldanyogia/webrana-mail-digest/internal/smtpsink"
)

type SenderTestSuite struct {
	suite.Suite
	sink   *smtpsink.Sink
	sender *SMTPSender
}

func (s *SenderTestSuite) SetupTest() {
	sink, err := smtpsink.Start(smtpsink.Options{
		Addr:     "127.0.0.1:0",
		Username: "digest@example.com",
		Password: "app-password",
		Reject:   []string{"gone@example.com"},
		Logger:   logger.Discard(),
	})
	s.Require().NoError(err)
	s.sink = sink
	s.sender = s.newSender("app-password")
}

func (s *SenderTestSuite) TearDownTest() {
	_ = s.sink.Close()
}

func (s *SenderTestSuite) newSender(password string) *SMTPSender {
	renderer, err := report.NewRenderer()
	s.Require().NoError(err)

	host, port := s.sink.HostPort()
	return NewSMTPSender(Options{
		Host:     host,
		Port:     port,
		Security: SecurityNone,
		Username: "digest@example.com",
		Password: password,
		FromName: "Mail Digest",
		Timeout:  5 * time.Second,
		Renderer: renderer,
		Logger:   logger.Discard(),
	})
}

func TestSenderTestSuite(t *testing.T) {
	suite.Run(t, new(SenderTestSuite))
}

func (s *SenderTestSuite) TestSend_PlainText() {
	result := s.sender.Send(context.Background(), "me@example.com", "Hello", "Plain body", false)

	s.True(result.Success)
	s.Equal("Email sent successfully to me@example.com", result.Message)

	msgs := s.sink.Messages()
	s.Require().Len(msgs, 1)
	s.Equal("Hello", msgs[0].Subject)
	s.Equal("digest@example.com", msgs[0].FromAddress)
	s.Equal("Mail Digest", msgs[0].FromName)
	s.Equal([]string{"me@example.com"}, msgs[0].Recipients)
	s.Contains(msgs[0].Text, "Plain body")
	s.Contains(msgs[0].MessageID, "@example.com")
}

func (s *SenderTestSuite) TestSend_HTMLCarriesTextAlternative() {
	result := s.sender.Send(context.Background(), "me@example.com", "Html", "<p>Hello <b>world</b></p>", true)
	s.Require().True(result.Success)

	msg := s.sink.Messages()[0]
	s.Contains(msg.HTML, "<b>world</b>")
	s.Contains(msg.Text, "Hello")
	s.NotContains(msg.Text, "<b>")
}

func (s *SenderTestSuite) TestSend_SubjectCannotInjectHeaders() {
	result := s.sender.Send(context.Background(), "me@example.com", "Hi\r\nBcc: evil@example.com", "body", false)
	s.Require().True(result.Success)

	msg := s.sink.Messages()[0]
	s.Equal("HiBcc: evil@example.com", msg.Subject)
	s.Equal([]string{"me@example.com"}, msg.Recipients)
}

func (s *SenderTestSuite) TestSend_AuthenticationFailure() {
	result := s.newSender("wrong").Send(context.Background(), "me@example.com", "Hello", "body", false)

	s.False(result.Success)
	s.Equal(models.FailureAuth, result.Kind)
	s.Equal("SMTP authentication failed. Check email credentials.", result.Message)
	s.Empty(s.sink.Messages())
}

func (s *SenderTestSuite) TestSend_RecipientRejectedByServer() {
	result := s.sender.Send(context.Background(), "gone@example.com", "Hello", "body", false)

	s.False(result.Success)
	s.Equal(models.FailureRecipient, result.Kind)
	s.Equal("Invalid recipient email address: gone@example.com", result.Message)
}

func (s *SenderTestSuite) TestSend_MalformedRecipientNeverConnects() {
	result := s.sender.Send(context.Background(), "invalid-email", "Hello", "body", false)

	s.False(result.Success)
	s.Equal(models.FailureRecipient, result.Kind)
	s.Equal("Invalid recipient email address: invalid-email", result.Message)
	s.Empty(s.sink.Messages())
}

func (s *SenderTestSuite) TestSendTemplated_SummaryReport() {
	data := models.NewReportData(time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC), []models.Digest{
		{Subject: "Invoice", Summary: "Pay by Friday"},
	})

	result := s.sender.SendTemplated(context.Background(), "me@example.com", "Daily Email Summary Report", report.SummaryTemplate, data)
	s.Require().True(result.Success, result.Message)

	msg := s.sink.Messages()[0]
	s.Equal("Daily Email Summary Report", msg.Subject)
	s.Contains(msg.HTML, "Invoice")
	s.Contains(msg.HTML, "Pay by Friday")
}

func (s *SenderTestSuite) TestSendTemplated_UnknownTemplate() {
	result := s.sender.SendTemplated(context.Background(), "me@example.com", "Hello", "missing.html", nil)

	s.False(result.Success)
	s.Equal(models.FailureTemplate, result.Kind)
	s.True(strings.HasPrefix(result.Message, "Template rendering failed: "))
	s.Empty(s.sink.Messages())
}

func TestSend_UnreachableServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	sender := NewSMTPSender(Options{
		Host:     "127.0.0.1",
		Port:     port,
		Security: SecurityNone,
		Username: "digest@example.com",
		Password: "secret",
		Timeout:  time.Second,
		Logger:   logger.Discard(),
	})

	var result models.SendResult
	require.NotPanics(t, func() {
		result = sender.Send(context.Background(), "me@example.com", "Hello", "body", false)
	})

	assert.False(t, result.Success)
	assert.Equal(t, models.FailureTransport, result.Kind)
	assert.True(t, strings.HasPrefix(result.Message, "SMTP error occurred: "))
}

func TestSend_NotConfigured(t *testing.T) {
	sender := NewSMTPSender(Options{Host: "smtp.example.com", Port: 587, Logger: logger.Discard()})

	assert.False(t, sender.Configured())

	result := sender.Send(context.Background(), "me@example.com", "Hello", "body", false)
	assert.False(t, result.Success)
	assert.Equal(t, models.FailureConfiguration, result.Kind)
	assert.Contains(t, result.Message, "not configured")

	result = sender.SendTemplated(context.Background(), "me@example.com", "Hello", report.SummaryTemplate, nil)
	assert.Equal(t, models.FailureConfiguration, result.Kind)
}

func TestResolveSecurity(t *testing.T) {
	tests := []struct {
		mode string
		port int
		want string
	}{
		{"auto", 465, SecurityTLS},
		{"auto", 587, SecuritySTARTTLS},
		{"auto", 25, SecurityNone},
		{"", 587, SecuritySTARTTLS},
		{"TLS", 587, SecurityTLS},
		{"none", 465, SecurityNone},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveSecurity(tt.mode, tt.port), "%s/%d", tt.mode, tt.port)
	}
}
