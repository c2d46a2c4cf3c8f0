package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

const systemPrompt = "You are a helpful personal assistant that summarizes emails into concise structured JSON."

const userPromptTemplate = `You will receive the content of an email.
Your task is to provide a concise 3-6 sentence summary focusing on the main purpose, key points, and any action items.

Return ONLY a valid JSON object with the following structure:
{
  "subject": "<email subject>",
  "summary": "<summary text>"
}

Make sure the response is a valid JSON, no extra text or explanation.

Subject: %s
Content: %s
`

// GroqOptions configures a GroqClient
type GroqOptions struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int
	Timeout           time.Duration
	RequestsPerMinute int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// GroqClient calls Groq through its OpenAI-compatible chat completions API
type GroqClient struct {
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	api         *openai.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewGroqClient creates a client. Without an API key it runs in placeholder mode.
func NewGroqClient(opts GroqOptions) *GroqClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.groq.com/openai/v1"
	}
	if opts.Model == "" {
		opts.Model = "llama-3.3-70b-versatile"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 300
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	limit := rate.Inf
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
	}

	logger := opts.Logger.With(slog.String("component", "summarizer"))
	if opts.APIKey == "" {
		logger.Warn("GROQ_API_KEY not set, summaries will be placeholders")
	}

	apiConfig := openai.DefaultConfig(opts.APIKey)
	apiConfig.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	apiConfig.HTTPClient = opts.HTTPClient

	return &GroqClient{
		apiKey:      opts.APIKey,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		api:         openai.NewClientWithConfig(apiConfig),
		limiter:     rate.NewLimiter(limit, 1),
		logger:      logger,
	}
}

// Available reports whether an API key is configured
func (c *GroqClient) Available() bool {
	return c.apiKey != ""
}

// Summarize asks the model for a {subject, summary} object
func (c *GroqClient) Summarize(ctx context.Context, subject, content string) (models.Digest, error) {
	if !c.Available() {
		return Unavailable(subject, content), nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return models.Digest{}, fmt.Errorf("waiting for llm rate limit: %w", err)
	}

	raw, err := c.complete(ctx, fmt.Sprintf(userPromptTemplate, subject, content))
	if err != nil {
		return models.Digest{}, err
	}

	digest := parseDigest(subject, raw)
	c.logger.Debug("summary generated", slog.String("subject", truncate(subject, 50)))
	return digest, nil
}

func (c *GroqClient) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature:         float32(c.temperature),
		MaxCompletionTokens: c.maxTokens,
		ResponseFormat:      &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	})
	if err != nil {
		return "", classifyCompletionError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm api returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// classifyCompletionError maps SDK errors onto the service's sentinels.
// Errors without an HTTP status never reached the API.
func classifyCompletionError(err error) error {
	var (
		apiErr *openai.APIError
		reqErr *openai.RequestError
		status int
	)
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return fmt.Errorf("%w: llm request: %v", apperrors.ErrTransport, err)
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: llm api returned %d", apperrors.ErrAuthFailed, status)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: llm api returned %d: %v", apperrors.ErrTransport, status, err)
	default:
		return fmt.Errorf("llm api error %d: %v", status, err)
	}
}

// parseDigest reads the model's JSON answer. A model subject overrides the
// original one; unparseable output is kept verbatim under "No Subject".
func parseDigest(original, raw string) models.Digest {
	var parsed struct {
		Subject string `json:"subject"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil || strings.TrimSpace(parsed.Summary) == "" {
		return models.Digest{Subject: models.NoSubject, Summary: raw}
	}

	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		subject = subjectOrDefault(original)
	}
	return models.Digest{Subject: subject, Summary: strings.TrimSpace(parsed.Summary)}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
