package mailbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/mail"
	"sync"
	"time"

	"github.com/jhillyerd/enmime"
	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const gmailUserID = "me"

// ClientSource supplies an authorized HTTP client for the Gmail API
type ClientSource interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// GmailOptions configures a GmailReader
type GmailOptions struct {
	MaxResults int64
	// Endpoint overrides the API base URL, used against fake servers
	Endpoint string
	Logger   *slog.Logger
	Now      func() time.Time
}

// GmailReader reads the authenticated user's mailbox through the Gmail API
type GmailReader struct {
	auth       ClientSource
	maxResults int64
	endpoint   string
	logger     *slog.Logger
	now        func() time.Time

	mu  sync.Mutex
	svc *gmail.Service
}

// NewGmailReader creates a reader; no network traffic happens until first use
func NewGmailReader(auth ClientSource, opts GmailOptions) *GmailReader {
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &GmailReader{
		auth:       auth,
		maxResults: opts.MaxResults,
		endpoint:   opts.Endpoint,
		logger:     opts.Logger.With(slog.String("component", "gmail_reader")),
		now:        opts.Now,
	}
}

// Connect builds the Gmail service once and caches it
func (r *GmailReader) Connect(ctx context.Context) error {
	_, err := r.service(ctx)
	return err
}

// IsConnected reports whether Connect has succeeded
func (r *GmailReader) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.svc != nil
}

func (r *GmailReader) service(ctx context.Context) (*gmail.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.svc != nil {
		return r.svc, nil
	}

	client, err := r.auth.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if r.endpoint != "" {
		opts = append(opts, option.WithEndpoint(r.endpoint))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gmail.NewService failed: %w", err)
	}

	r.svc = svc
	r.logger.Info("gmail api authentication successful")
	return svc, nil
}

// FetchRecent lists messages received after now-window. Gmail returns them newest first.
func (r *GmailReader) FetchRecent(ctx context.Context, window time.Duration) FetchResult {
	svc, err := r.service(ctx)
	if err != nil {
		r.logger.Error("gmail authentication failed", slog.String("error", err.Error()))
		return Failed(fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, err))
	}

	query := fmt.Sprintf("after:%d", r.now().Add(-window).Unix())
	r.logger.Info("searching for emails", slog.String("query", query))

	list, err := svc.Users.Messages.List(gmailUserID).
		Q(query).
		MaxResults(r.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		r.logger.Error("failed to list messages", slog.String("error", err.Error()))
		return Failed(fmt.Errorf("%w: messages.List: %v", apperrors.ErrFetchFailed, err))
	}

	msgs := make([]models.MessageSummary, 0, len(list.Messages))
	for _, ref := range list.Messages {
		if err := ctx.Err(); err != nil {
			return Failed(fmt.Errorf("%w: %v", apperrors.ErrFetchFailed, err))
		}

		msg, err := svc.Users.Messages.Get(gmailUserID, ref.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From", "Date").
			Context(ctx).
			Do()
		if err != nil {
			r.logger.Warn("skipping message", slog.String("message_id", ref.Id), slog.String("error", err.Error()))
			continue
		}
		msgs = append(msgs, summaryFromGmail(msg))
	}

	r.logger.Info("fetched emails", slog.Int("listed", len(list.Messages)), slog.Int("processed", len(msgs)))
	return Succeeded(msgs)
}

// FetchFullContent downloads the raw message and extracts its text body
func (r *GmailReader) FetchFullContent(ctx context.Context, id string) (string, bool) {
	svc, err := r.service(ctx)
	if err != nil {
		return "", false
	}

	msg, err := svc.Users.Messages.Get(gmailUserID, id).Format("raw").Context(ctx).Do()
	if err != nil {
		r.logger.Warn("failed to get message content", slog.String("message_id", id), slog.String("error", err.Error()))
		return "", false
	}

	raw, err := decodeBase64URL(msg.Raw)
	if err != nil {
		return html.UnescapeString(msg.Snippet), msg.Snippet != ""
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		r.logger.Warn("failed to parse message", slog.String("message_id", id), slog.String("error", err.Error()))
		return html.UnescapeString(msg.Snippet), msg.Snippet != ""
	}

	if text := BodyText(env.Text, env.HTML); text != "" {
		return text, true
	}
	return html.UnescapeString(msg.Snippet), msg.Snippet != ""
}

func summaryFromGmail(msg *gmail.Message) models.MessageSummary {
	var subject, sender, date string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				subject = h.Value
			case "From":
				sender = h.Value
			case "Date":
				date = h.Value
			}
		}
	}

	received := time.Time{}
	if msg.InternalDate > 0 {
		received = time.UnixMilli(msg.InternalDate).UTC()
	} else if t, err := mail.ParseDate(date); err == nil {
		received = t.UTC()
	}

	return models.MessageSummary{
		ID:         msg.Id,
		Subject:    subjectOrDefault(subject),
		Sender:     senderOrDefault(sender),
		Snippet:    Snippet(html.UnescapeString(msg.Snippet)),
		ReceivedAt: received,
	}
}

func decodeBase64URL(data string) ([]byte, error) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		return base64.RawURLEncoding.DecodeString(data)
	}
	return decoded, nil
}
