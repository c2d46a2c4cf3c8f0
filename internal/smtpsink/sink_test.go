package smtpsink

import (
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawMessage = "From: \"Digest Bot\" <bot@example.com>\r\n" +
	"To: me@example.com\r\n" +
	"Subject: Hello sink\r\n" +
	"Message-Id: <abc-123@example.com>\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Body line\r\n"

func startSink(t *testing.T, opts Options) *Sink {
	t.Helper()
	opts.Addr = "127.0.0.1:0"
	s, err := Start(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSink_CapturesMessage(t *testing.T) {
	s := startSink(t, Options{})

	err := smtp.SendMail(s.Addr(), nil, "bot@example.com", []string{"me@example.com"}, strings.NewReader(rawMessage))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(s.Messages()) == 1 }, 2*time.Second, 10*time.Millisecond)
	msg := s.Messages()[0]

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "bot@example.com", msg.EnvelopeFrom)
	assert.Equal(t, []string{"me@example.com"}, msg.Recipients)
	assert.Equal(t, "Digest Bot", msg.FromName)
	assert.Equal(t, "bot@example.com", msg.FromAddress)
	assert.Equal(t, "Hello sink", msg.Subject)
	assert.Equal(t, "abc-123@example.com", msg.MessageID)
	assert.Contains(t, msg.Text, "Body line")
	assert.False(t, msg.ReceivedAt.IsZero())
}

func TestSink_RequiresValidCredentialsWhenConfigured(t *testing.T) {
	s := startSink(t, Options{Username: "user", Password: "secret"})

	err := smtp.SendMail(s.Addr(), sasl.NewPlainClient("", "user", "wrong"),
		"bot@example.com", []string{"me@example.com"}, strings.NewReader(rawMessage))
	require.Error(t, err)

	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.GreaterOrEqual(t, smtpErr.Code, 400)
	assert.Empty(t, s.Messages())

	err = smtp.SendMail(s.Addr(), sasl.NewPlainClient("", "user", "secret"),
		"bot@example.com", []string{"me@example.com"}, strings.NewReader(rawMessage))
	require.NoError(t, err)
	assert.Len(t, s.Messages(), 1)
}

func TestSink_RejectsConfiguredRecipient(t *testing.T) {
	s := startSink(t, Options{Reject: []string{"Nobody@Example.com"}})

	err := smtp.SendMail(s.Addr(), nil, "bot@example.com", []string{"nobody@example.com"}, strings.NewReader(rawMessage))
	require.Error(t, err)

	var smtpErr *smtp.SMTPError
	require.ErrorAs(t, err, &smtpErr)
	assert.Equal(t, 550, smtpErr.Code)
	assert.Empty(t, s.Messages())
}

func TestSink_Reset(t *testing.T) {
	s := startSink(t, Options{})
	require.NoError(t, smtp.SendMail(s.Addr(), nil, "bot@example.com", []string{"me@example.com"}, strings.NewReader(rawMessage)))
	require.Len(t, s.Messages(), 1)

	s.Reset()
	assert.Empty(t, s.Messages())
}

func TestHostPort(t *testing.T) {
	s := startSink(t, Options{})
	host, port := s.HostPort()

	assert.Equal(t, "127.0.0.1", host)
	assert.Greater(t, port, 0)
}

func TestMessageStore_DropsOldestOverCapacity(t *testing.T) {
	store := newMessageStore(2)
	store.add(Message{Subject: "one"})
	store.add(Message{Subject: "two"})
	store.add(Message{Subject: "three"})

	msgs := store.list()
	require.Len(t, msgs, 2)
	assert.Equal(t, "two", msgs[0].Subject)
	assert.Equal(t, "three", msgs[1].Subject)
}

func TestNewServer_Defaults(t *testing.T) {
	server := NewServer(NewBackend(&BackendConfig{}), &ServerConfig{Addr: ":2525"})

	assert.Equal(t, ":2525", server.Addr)
	assert.Equal(t, "localhost", server.Domain)
	assert.Equal(t, int64(DefaultMaxMessageSize), server.MaxMessageBytes)
	assert.Equal(t, DefaultMaxRecipients, server.MaxRecipients)
	assert.Equal(t, DefaultReadTimeout, server.ReadTimeout)
	assert.Equal(t, DefaultWriteTimeout, server.WriteTimeout)
	assert.Equal(t, DefaultMaxLineLength, server.MaxLineLength)
	assert.False(t, server.AllowInsecureAuth)
}

func TestParseMessage_HTMLOnly(t *testing.T) {
	raw := "From: bot@example.com\r\nSubject: Html\r\nContent-Type: text/html; charset=utf-8\r\n\r\n<p>Hi <b>there</b></p>\r\n"

	msg, err := ParseMessage(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "bot@example.com", msg.FromAddress)
	assert.Contains(t, msg.HTML, "<b>there</b>")
}
