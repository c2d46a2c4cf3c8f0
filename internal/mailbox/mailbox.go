// Package mailbox reads recent messages from the digest mailbox.
package mailbox

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jaytaylor/html2text"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// MaxSnippetLength bounds MessageSummary.Snippet in runes
const MaxSnippetLength = 200

// DefaultMaxResults caps one fetch when the caller gives no limit
const DefaultMaxResults = 100

// Reader is a remote mailbox with lazy, cached authentication
type Reader interface {
	// FetchRecent lists messages received within window, most recent first
	FetchRecent(ctx context.Context, window time.Duration) FetchResult
	// FetchFullContent returns the decoded body of one message
	FetchFullContent(ctx context.Context, id string) (string, bool)
	Connect(ctx context.Context) error
	IsConnected() bool
}

// FetchResult distinguishes "no mail" from "could not read the mailbox"
type FetchResult struct {
	Messages []models.MessageSummary
	Err      error
}

// Succeeded wraps a fetched batch
func Succeeded(msgs []models.MessageSummary) FetchResult {
	if msgs == nil {
		msgs = []models.MessageSummary{}
	}
	return FetchResult{Messages: msgs}
}

// Failed wraps the reason a fetch could not complete
func Failed(err error) FetchResult {
	return FetchResult{Err: err}
}

// OK reports whether the fetch completed
func (r FetchResult) OK() bool {
	return r.Err == nil
}

// Snippet collapses whitespace and truncates text to MaxSnippetLength runes
func Snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= MaxSnippetLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:MaxSnippetLength])
}

// BodyText prefers the plain-text part and falls back to converted HTML
func BodyText(plain, htmlBody string) string {
	if strings.TrimSpace(plain) != "" {
		return plain
	}
	if strings.TrimSpace(htmlBody) == "" {
		return ""
	}
	text, err := html2text.FromString(htmlBody, html2text.Options{OmitLinks: true})
	if err != nil {
		return htmlBody
	}
	return text
}

func subjectOrDefault(subject string) string {
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	return models.NoSubject
}

func senderOrDefault(sender string) string {
	if s := strings.TrimSpace(sender); s != "" {
		return s
	}
	return models.UnknownSender
}
