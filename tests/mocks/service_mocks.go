package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailbox"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// MockMailboxReader implements mailbox.Reader
type MockMailboxReader struct {
	mock.Mock
}

// FetchRecent lists messages received within window
func (m *MockMailboxReader) FetchRecent(ctx context.Context, window time.Duration) mailbox.FetchResult {
	args := m.Called(ctx, window)
	return args.Get(0).(mailbox.FetchResult)
}

// FetchFullContent returns the body of one message
func (m *MockMailboxReader) FetchFullContent(ctx context.Context, id string) (string, bool) {
	args := m.Called(ctx, id)
	return args.String(0), args.Bool(1)
}

// Connect authenticates against the mailbox
func (m *MockMailboxReader) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// IsConnected reports whether Connect succeeded
func (m *MockMailboxReader) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockSummarizer implements summarizer.Summarizer
type MockSummarizer struct {
	mock.Mock
}

// Summarize produces one digest
func (m *MockSummarizer) Summarize(ctx context.Context, subject, content string) (models.Digest, error) {
	args := m.Called(ctx, subject, content)
	if fn, ok := args.Get(0).(func(context.Context, string, string) models.Digest); ok {
		return fn(ctx, subject, content), args.Error(1)
	}
	return args.Get(0).(models.Digest), args.Error(1)
}

// Available reports whether a model is configured
func (m *MockSummarizer) Available() bool {
	args := m.Called()
	return args.Bool(0)
}

// MockSender implements mailer.Sender
type MockSender struct {
	mock.Mock
}

// Send delivers a message
func (m *MockSender) Send(ctx context.Context, to, subject, body string, isHTML bool) models.SendResult {
	args := m.Called(ctx, to, subject, body, isHTML)
	return args.Get(0).(models.SendResult)
}

// SendTemplated renders and delivers a message
func (m *MockSender) SendTemplated(ctx context.Context, to, subject, templateName string, vars interface{}) models.SendResult {
	args := m.Called(ctx, to, subject, templateName, vars)
	return args.Get(0).(models.SendResult)
}

// Configured reports whether credentials are set
func (m *MockSender) Configured() bool {
	args := m.Called()
	return args.Bool(0)
}
