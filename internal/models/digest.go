package models

import (
	"time"
)

// Header fallbacks applied by mailbox readers
const (
	NoSubject     = "No Subject"
	UnknownSender = "Unknown Sender"
)

// MessageSummary is a lightweight view of one fetched email
type MessageSummary struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet"`
	Sender     string    `json:"sender"`
	ReceivedAt time.Time `json:"received_at"`
}

// Digest is the summarization output for a single message
type Digest struct {
	Subject string `json:"subject"`
	Summary string `json:"summary"`
}

// ReportData is everything the summary report template renders
type ReportData struct {
	Date        string    `json:"date"`
	GeneratedAt time.Time `json:"generated_at"`
	TotalCount  int       `json:"total_count"`
	Digests     []Digest  `json:"digests"`
}

// NewReportData assembles report data for the given instant.
// TotalCount is derived from the digests so the two cannot drift.
func NewReportData(now time.Time, digests []Digest) ReportData {
	if digests == nil {
		digests = []Digest{}
	}
	return ReportData{
		Date:        now.UTC().Format("January 02, 2006"),
		GeneratedAt: now.UTC(),
		TotalCount:  len(digests),
		Digests:     digests,
	}
}

// Timestamp returns the generation time in report display format
func (d ReportData) Timestamp() string {
	return d.GeneratedAt.UTC().Format("2006-01-02 15:04:05 UTC")
}
