package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// IMAPOptions configures an IMAPReader
type IMAPOptions struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Mailbox    string
	TLS        bool
	MaxResults int
	Logger     *slog.Logger
	Now        func() time.Time
}

// IMAPReader reads a mailbox over IMAP. The logged-in session is kept between
// runs and dropped after any protocol error so the next call reconnects.
type IMAPReader struct {
	opts   IMAPOptions
	logger *slog.Logger

	mu     sync.Mutex
	client *imapclient.Client
}

// NewIMAPReader creates a reader; the connection is opened on first use
func NewIMAPReader(opts IMAPOptions) *IMAPReader {
	if opts.Mailbox == "" {
		opts.Mailbox = "INBOX"
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &IMAPReader{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "imap_reader")),
	}
}

func (r *IMAPReader) addr() string {
	return net.JoinHostPort(r.opts.Host, strconv.Itoa(r.opts.Port))
}

// Connect dials and logs in unless a session is already open
func (r *IMAPReader) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, err := r.connectLocked(ctx)
	return err
}

// IsConnected reports whether a logged-in session is cached
func (r *IMAPReader) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client != nil
}

func (r *IMAPReader) connectLocked(ctx context.Context) (*imapclient.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	if r.opts.Username == "" || r.opts.Password == "" {
		return nil, fmt.Errorf("imap credentials missing: %w", apperrors.ErrNotConfigured)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		client *imapclient.Client
		err    error
	)
	if r.opts.TLS {
		client, err = imapclient.DialTLS(r.addr(), nil)
	} else {
		client, err = imapclient.DialStartTLS(r.addr(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to IMAP %s: %v", apperrors.ErrTransport, r.addr(), err)
	}

	if err := client.Login(r.opts.Username, r.opts.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: imap login for %s: %v", apperrors.ErrAuthFailed, r.opts.Username, err)
	}

	r.client = client
	r.logger.Info("imap authentication successful", slog.String("server", r.addr()))
	return client, nil
}

func (r *IMAPReader) resetLocked() {
	if r.client != nil {
		_ = r.client.Close()
		r.client = nil
	}
}

// FetchRecent searches the mailbox for messages received within window
func (r *IMAPReader) FetchRecent(ctx context.Context, window time.Duration) FetchResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, err := r.connectLocked(ctx)
	if err != nil {
		r.logger.Error("imap authentication failed", slog.String("error", err.Error()))
		return Failed(fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, err))
	}

	// imapclient has no context support; closing the connection unblocks pending commands
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	msgs, err := r.fetchRecent(client, r.opts.Now().Add(-window))
	if err != nil {
		r.resetLocked()
		r.logger.Error("imap fetch failed", slog.String("error", err.Error()))
		return Failed(fmt.Errorf("%w: %v", apperrors.ErrFetchFailed, err))
	}

	r.logger.Info("fetched emails", slog.Int("count", len(msgs)))
	return Succeeded(msgs)
}

func (r *IMAPReader) fetchRecent(client *imapclient.Client, cutoff time.Time) ([]models.MessageSummary, error) {
	if _, err := client.Select(r.opts.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", r.opts.Mailbox, err)
	}

	// SINCE has day granularity; the exact cutoff is applied on InternalDate below
	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: cutoff}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return []models.MessageSummary{}, nil
	}
	if len(uids) > r.opts.MaxResults {
		uids = uids[len(uids)-r.opts.MaxResults:]
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:     true,
		UID:          true,
		InternalDate: true,
		BodySection:  []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	msgs := make([]models.MessageSummary, 0, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			r.logger.Warn("skipping message", slog.String("error", err.Error()))
			continue
		}
		if !buf.InternalDate.IsZero() && buf.InternalDate.Before(cutoff) {
			continue
		}
		msgs = append(msgs, summaryFromIMAP(buf, buf.FindBodySection(section)))
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, fmt.Errorf("fetching messages: %w", err)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceivedAt.After(msgs[j].ReceivedAt)
	})
	return msgs, nil
}

// FetchFullContent fetches one message by UID and returns its text body
func (r *IMAPReader) FetchFullContent(ctx context.Context, id string) (string, bool) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	client, err := r.connectLocked(ctx)
	if err != nil {
		return "", false
	}
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if _, err := client.Select(r.opts.Mailbox, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		r.resetLocked()
		return "", false
	}

	section := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return "", false
	}
	buf, err := msg.Collect()
	if err != nil {
		r.resetLocked()
		return "", false
	}

	plain, htmlBody := parseBodies(buf.FindBodySection(section))
	text := BodyText(plain, htmlBody)
	return text, text != ""
}

func summaryFromIMAP(buf *imapclient.FetchMessageBuffer, raw []byte) models.MessageSummary {
	var subject, sender string
	received := buf.InternalDate
	if buf.Envelope != nil {
		subject = buf.Envelope.Subject
		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				sender = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
			} else {
				sender = from.Addr()
			}
		}
		if received.IsZero() {
			received = buf.Envelope.Date
		}
	}

	plain, htmlBody := parseBodies(raw)
	return models.MessageSummary{
		ID:         strconv.FormatUint(uint64(buf.UID), 10),
		Subject:    subjectOrDefault(subject),
		Sender:     senderOrDefault(sender),
		Snippet:    Snippet(BodyText(plain, htmlBody)),
		ReceivedAt: received.UTC(),
	}
}

// parseBodies walks a raw RFC 5322 message and returns its first text/plain
// and text/html inline parts.
func parseBodies(raw []byte) (plain, htmlBody string) {
	if len(raw) == 0 {
		return "", ""
	}

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			plain = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}
	return plain, htmlBody
}
