package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// completionRequest is the wire body the fake endpoint records
type completionRequest struct {
	Model               string  `json:"model"`
	Temperature         float64 `json:"temperature"`
	MaxCompletionTokens int     `json:"max_completion_tokens"`
	Messages            []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

// GroqClientTestSuite exercises the client against a fake completions endpoint
type GroqClientTestSuite struct {
	suite.Suite
	server  *httptest.Server
	client  *GroqClient
	status  int
	content string
	lastReq completionRequest
	lastKey string
	calls   atomic.Int32
}

func (s *GroqClientTestSuite) SetupTest() {
	s.status = http.StatusOK
	s.content = `{"subject":"Launch moved","summary":"The launch moves to Friday. Please update the plan."}`
	s.calls.Store(0)

	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.calls.Add(1)
		s.Equal("/chat/completions", r.URL.Path)
		s.lastKey = r.Header.Get("Authorization")
		s.lastReq = completionRequest{}
		_ = json.NewDecoder(r.Body).Decode(&s.lastReq)

		if s.status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(s.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"invalid_request_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": s.content}, "finish_reason": "stop"},
			},
		})
	}))

	s.client = NewGroqClient(GroqOptions{
		APIKey:      "gsk_test",
		BaseURL:     s.server.URL + "/",
		Temperature: 0.3,
		MaxTokens:   300,
		Timeout:     2 * time.Second,
		Logger:      logger.Discard(),
	})
}

func (s *GroqClientTestSuite) TearDownTest() {
	s.server.Close()
}

func TestGroqClientTestSuite(t *testing.T) {
	suite.Run(t, new(GroqClientTestSuite))
}

func (s *GroqClientTestSuite) TestSummarize_ParsesStructuredOutput() {
	d, err := s.client.Summarize(context.Background(), "Launch", "The launch is moving")

	s.Require().NoError(err)
	s.Equal("Launch moved", d.Subject)
	s.Equal("The launch moves to Friday. Please update the plan.", d.Summary)
}

func (s *GroqClientTestSuite) TestSummarize_SendsModelParameters() {
	_, err := s.client.Summarize(context.Background(), "Launch", "The launch is moving")
	s.Require().NoError(err)

	s.Equal("Bearer gsk_test", s.lastKey)
	s.Equal("llama-3.3-70b-versatile", s.lastReq.Model)
	s.InDelta(0.3, s.lastReq.Temperature, 1e-6)
	s.Equal(300, s.lastReq.MaxCompletionTokens)
	s.Equal("json_object", s.lastReq.ResponseFormat["type"])
	s.Require().Len(s.lastReq.Messages, 2)
	s.Equal(systemPrompt, s.lastReq.Messages[0].Content)
	s.Contains(s.lastReq.Messages[1].Content, "Content: The launch is moving")
}

func (s *GroqClientTestSuite) TestSummarize_NonJSONFallsBackToRawText() {
	s.content = "Sure! Here is a summary: meeting moved."

	d, err := s.client.Summarize(context.Background(), "Launch", "body")

	s.Require().NoError(err)
	s.Equal(models.NoSubject, d.Subject)
	s.Equal("Sure! Here is a summary: meeting moved.", d.Summary)
}

func (s *GroqClientTestSuite) TestSummarize_CodeFencedJSON() {
	s.content = "```json\n{\"subject\":\"\",\"summary\":\"Short.\"}\n```"

	d, err := s.client.Summarize(context.Background(), "Original", "body")

	s.Require().NoError(err)
	s.Equal("Original", d.Subject)
	s.Equal("Short.", d.Summary)
}

func (s *GroqClientTestSuite) TestSummarize_Unauthorized() {
	s.status = http.StatusUnauthorized

	_, err := s.client.Summarize(context.Background(), "Launch", "body")

	s.ErrorIs(err, apperrors.ErrAuthFailed)
}

func (s *GroqClientTestSuite) TestSummarize_ServerError() {
	s.status = http.StatusBadGateway

	_, err := s.client.Summarize(context.Background(), "Launch", "body")

	s.ErrorIs(err, apperrors.ErrTransport)
}

func (s *GroqClientTestSuite) TestSummarize_BadRequest() {
	s.status = http.StatusBadRequest

	_, err := s.client.Summarize(context.Background(), "Launch", "body")

	s.Error(err)
	s.Contains(err.Error(), "llm api error 400")
	s.NotErrorIs(err, apperrors.ErrTransport)
}

func (s *GroqClientTestSuite) TestSummarize_RateLimitedIsTransport() {
	s.status = http.StatusTooManyRequests

	_, err := s.client.Summarize(context.Background(), "Launch", "body")

	s.ErrorIs(err, apperrors.ErrTransport)
	s.Contains(err.Error(), "429")
}

func (s *GroqClientTestSuite) TestSummarize_NonJSONErrorBody() {
	s.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("forbidden"))
	})

	_, err := s.client.Summarize(context.Background(), "Launch", "body")

	s.ErrorIs(err, apperrors.ErrAuthFailed)
}

func (s *GroqClientTestSuite) TestSummarize_NoChoices() {
	s.server.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
	})

	_, err := s.client.Summarize(context.Background(), "Launch", "body")

	s.Error(err)
	s.Contains(err.Error(), "no choices")
}

func TestGroqClient_UnreachableEndpointIsTransport(t *testing.T) {
	c := NewGroqClient(GroqOptions{APIKey: "k", BaseURL: "http://127.0.0.1:1", Timeout: time.Second, Logger: logger.Discard()})

	_, err := c.Summarize(context.Background(), "s", "c")

	assert.ErrorIs(t, err, apperrors.ErrTransport)
}

func TestGroqClient_WithoutKeyNeverCallsOut(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewGroqClient(GroqOptions{BaseURL: srv.URL, Logger: logger.Discard()})

	d, err := c.Summarize(context.Background(), "Hello", "Original body")

	require.NoError(t, err)
	assert.False(t, c.Available())
	assert.Equal(t, "⚠️ Unable to summarize. Original content: Original body...", d.Summary)
	assert.Zero(t, calls.Load())
}

func TestGroqClient_RateLimiterHonoursContext(t *testing.T) {
	c := NewGroqClient(GroqOptions{APIKey: "k", BaseURL: "http://127.0.0.1:1", RequestsPerMinute: 1, Logger: logger.Discard()})
	// consume the single burst token
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Summarize(ctx, "s", "c")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
}

func TestParseDigest(t *testing.T) {
	tests := []struct {
		name     string
		original string
		raw      string
		want     models.Digest
	}{
		{"model subject wins", "Orig", `{"subject":"New","summary":"S"}`, models.Digest{Subject: "New", Summary: "S"}},
		{"empty model subject keeps original", "Orig", `{"subject":"","summary":"S"}`, models.Digest{Subject: "Orig", Summary: "S"}},
		{"missing summary is raw", "Orig", `{"subject":"New"}`, models.Digest{Subject: models.NoSubject, Summary: `{"subject":"New"}`}},
		{"garbage", "Orig", "not json", models.Digest{Subject: models.NoSubject, Summary: "not json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDigest(tt.original, tt.raw))
		})
	}
}
