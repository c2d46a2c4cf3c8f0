package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// Run triggers
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
	TriggerDebug     = "debug"
)

// ReportRun records the outcome of one report pipeline execution
type ReportRun struct {
	ID            string     `gorm:"primaryKey;size:36" json:"id"`
	Trigger       string     `gorm:"not null;size:32;index" json:"trigger"`
	Status        string     `gorm:"not null;size:16;index" json:"status"`
	Recipient     string     `gorm:"size:255" json:"recipient,omitempty"`
	FetchedCount  int        `gorm:"default:0" json:"fetched_count"`
	DigestCount   int        `gorm:"default:0" json:"digest_count"`
	FallbackCount int        `gorm:"default:0" json:"fallback_count"`
	FetchFailed   bool       `gorm:"default:false" json:"fetch_failed"`
	Message       string     `json:"message,omitempty"`
	ArchivePath   string     `gorm:"size:255" json:"-"`
	StartedAt     time.Time  `gorm:"not null;index" json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the table name for ReportRun
func (ReportRun) TableName() string {
	return "report_runs"
}

// BeforeCreate assigns a UUID when the caller did not
func (r *ReportRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Duration reports how long the run took, zero while still running
func (r *ReportRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
