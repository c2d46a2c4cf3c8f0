// Package summarizer turns email text into short structured digests.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"golang.org/x/sync/errgroup"
)

// Summarizer produces one Digest per message
type Summarizer interface {
	Summarize(ctx context.Context, subject, content string) (models.Digest, error)
	// Available reports whether a backing model is configured
	Available() bool
}

const placeholderContentLength = 200

// Unavailable is the digest returned when no model is configured
func Unavailable(subject, content string) models.Digest {
	if utf8.RuneCountInString(content) > placeholderContentLength {
		content = string([]rune(content)[:placeholderContentLength])
	}
	return models.Digest{
		Subject: subjectOrDefault(subject),
		Summary: fmt.Sprintf("⚠️ Unable to summarize. Original content: %s...", content),
	}
}

// Fallback is the digest substituted when summarizing one message failed
func Fallback(subject string, err error) models.Digest {
	return models.Digest{
		Subject: subjectOrDefault(subject),
		Summary: fmt.Sprintf("Error occurred during summarization: %v", err),
	}
}

func subjectOrDefault(subject string) string {
	if subject == "" {
		return models.NoSubject
	}
	return subject
}

// BatchOptions tunes SummarizeBatch
type BatchOptions struct {
	Concurrency int
	Logger      *slog.Logger
}

// SummarizeBatch summarizes items with at most opts.Concurrency calls in flight.
// The result has exactly one digest per item, in input order. Items whose call
// errors or panics get a Fallback digest; the second return value counts them.
func SummarizeBatch(ctx context.Context, s Summarizer, items []models.MessageSummary, opts BatchOptions) ([]models.Digest, int) {
	digests := make([]models.Digest, len(items))
	if len(items) == 0 {
		return digests, 0
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}

	logger.Info("starting summarization", slog.Int("count", len(items)), slog.Int("concurrency", limit))

	failed := make([]bool, len(items))
	var g errgroup.Group
	g.SetLimit(limit)
	for i := range items {
		g.Go(func() error {
			digests[i], failed[i] = summarizeOne(ctx, s, items[i], logger)
			return nil
		})
	}
	_ = g.Wait()

	fallbacks := 0
	for _, f := range failed {
		if f {
			fallbacks++
		}
	}

	logger.Info("completed summarization", slog.Int("count", len(digests)), slog.Int("fallbacks", fallbacks))
	return digests, fallbacks
}

func summarizeOne(ctx context.Context, s Summarizer, item models.MessageSummary, logger *slog.Logger) (d models.Digest, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("summarizer panicked", slog.String("message_id", item.ID), slog.Any("panic", r))
			d, failed = Fallback(item.Subject, fmt.Errorf("panic: %v", r)), true
		}
	}()

	if err := ctx.Err(); err != nil {
		return Fallback(item.Subject, err), true
	}

	digest, err := s.Summarize(ctx, item.Subject, item.Snippet)
	if err != nil {
		logger.Warn("summarization failed", slog.String("message_id", item.ID), slog.String("error", err.Error()))
		return Fallback(item.Subject, err), true
	}
	return digest, false
}
