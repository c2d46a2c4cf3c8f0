package fixtures

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
)

// ReportRunBuilder creates test ReportRun instances with fluent API
type ReportRunBuilder struct {
	run models.ReportRun
}

// NewReportRunBuilder creates a new ReportRunBuilder with sensible defaults
func NewReportRunBuilder() *ReportRunBuilder {
	started := time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)
	finished := started.Add(42 * time.Second)
	return &ReportRunBuilder{
		run: models.ReportRun{
			ID:           uuid.NewString(),
			Trigger:      models.TriggerScheduled,
			Status:       models.RunStatusSucceeded,
			Recipient:    "me@example.com",
			FetchedCount: 3,
			DigestCount:  3,
			Message:      "Email sent successfully to me@example.com",
			StartedAt:    started,
			FinishedAt:   &finished,
		},
	}
}

// WithID sets the run ID
func (b *ReportRunBuilder) WithID(id string) *ReportRunBuilder {
	b.run.ID = id
	return b
}

// WithTrigger sets the trigger
func (b *ReportRunBuilder) WithTrigger(trigger string) *ReportRunBuilder {
	b.run.Trigger = trigger
	return b
}

// WithStatus sets the status
func (b *ReportRunBuilder) WithStatus(status string) *ReportRunBuilder {
	b.run.Status = status
	return b
}

// WithCounts sets fetched, digest and fallback counts
func (b *ReportRunBuilder) WithCounts(fetched, digests, fallbacks int) *ReportRunBuilder {
	b.run.FetchedCount = fetched
	b.run.DigestCount = digests
	b.run.FallbackCount = fallbacks
	return b
}

// WithStartedAt sets the start time
func (b *ReportRunBuilder) WithStartedAt(t time.Time) *ReportRunBuilder {
	b.run.StartedAt = t
	return b
}

// WithArchivePath sets the archived report path
func (b *ReportRunBuilder) WithArchivePath(path string) *ReportRunBuilder {
	b.run.ArchivePath = path
	return b
}

// Running clears the finish time and marks the run in progress
func (b *ReportRunBuilder) Running() *ReportRunBuilder {
	b.run.Status = models.RunStatusRunning
	b.run.FinishedAt = nil
	return b
}

// Build returns the constructed ReportRun
func (b *ReportRunBuilder) Build() models.ReportRun {
	return b.run
}

// BuildPtr returns a pointer to the constructed ReportRun
func (b *ReportRunBuilder) BuildPtr() *models.ReportRun {
	run := b.run
	return &run
}

// Messages returns n message summaries, newest first, ending at now
func Messages(n int, now time.Time) []models.MessageSummary {
	msgs := make([]models.MessageSummary, n)
	for i := range msgs {
		msgs[i] = models.MessageSummary{
			ID:         fmt.Sprintf("msg-%d", i+1),
			Subject:    fmt.Sprintf("Subject %d", i+1),
			Snippet:    fmt.Sprintf("Snippet for message %d", i+1),
			Sender:     fmt.Sprintf("sender%d@example.com", i+1),
			ReceivedAt: now.Add(-time.Duration(i) * time.Hour),
		}
	}
	return msgs
}
