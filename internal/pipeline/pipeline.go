// Package pipeline runs one report: fetch, summarize, render and send.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailbox"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailer"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/report"
	"github.com/welldanyogia/webrana-mail-digest/internal/storage"
	"github.com/welldanyogia/webrana-mail-digest/internal/summarizer"
)

// Fetch failure policies
const (
	FailOpen   = "open"
	FailClosed = "closed"
)

// DefaultSubject is the subject line of the report email
const DefaultSubject = "Daily Email Summary Report"

const (
	defaultWindow  = 24 * time.Hour
	defaultTimeout = 10 * time.Minute
	persistTimeout = 5 * time.Second
)

// Config holds per-run settings
type Config struct {
	Recipient     string
	Window        time.Duration
	Concurrency   int
	FailurePolicy string
	Subject       string
	// Timeout bounds one whole run
	Timeout time.Duration
	// Retention prunes finished runs and their archived reports once they are
	// older than this. Zero keeps everything.
	Retention time.Duration
}

// RunStore persists run history
type RunStore interface {
	Create(ctx context.Context, run *models.ReportRun) error
	Update(ctx context.Context, run *models.ReportRun) error
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReportRun, error)
}

// Notifier is told when runs start and finish
type Notifier interface {
	RunStarted(run *models.ReportRun)
	RunFinished(run *models.ReportRun)
}

// Recorder receives run metrics
type Recorder interface {
	RunStarted()
	RunFinished(trigger, status string, fetched, fallbacks int, d time.Duration)
	EmailSent(result string)
}

// Renderer renders report data to HTML for the archive
type Renderer interface {
	Render(data models.ReportData) (string, error)
}

// Deps are the pipeline's collaborators. Reader, Summarizer and Sender are required.
type Deps struct {
	Reader     mailbox.Reader
	Summarizer summarizer.Summarizer
	Sender     mailer.Sender
	Runs       RunStore
	Notifier   Notifier
	Metrics    Recorder
	Archive    storage.ReportArchive
	Renderer   Renderer
	Logger     *slog.Logger
	Now        func() time.Time
}

// RunResult is the outcome of one run
type RunResult struct {
	Run  *models.ReportRun
	Data models.ReportData
	Send models.SendResult
}

// Pipeline executes report runs one at a time
type Pipeline struct {
	cfg     Config
	deps    Deps
	mu      sync.Mutex
	running atomic.Bool
}

// New creates a Pipeline
func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Reader == nil || deps.Summarizer == nil || deps.Sender == nil {
		return nil, fmt.Errorf("%w: reader, summarizer and sender are required", apperrors.ErrInvalidInput)
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.FailurePolicy != FailClosed {
		cfg.FailurePolicy = FailOpen
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// Running reports whether a run is executing
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Recipient returns the configured report recipient
func (p *Pipeline) Recipient() string {
	return p.cfg.Recipient
}

// Run executes one report. Overlapping calls fail fast with ErrRunInProgress.
// On failure the returned result still carries the recorded run.
func (p *Pipeline) Run(ctx context.Context, trigger string) (*RunResult, error) {
	if !p.mu.TryLock() {
		return nil, apperrors.Wrap(apperrors.ErrRunInProgress, trigger+" trigger")
	}
	defer p.mu.Unlock()
	p.running.Store(true)
	defer p.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	logger := p.deps.Logger
	run := &models.ReportRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		Recipient: p.cfg.Recipient,
		StartedAt: p.deps.Now().UTC(),
	}
	logger = logger.With(slog.String("run_id", run.ID), slog.String("trigger", trigger))
	logger.Info("report run started")

	p.persist(ctx, logger, run, true)
	if p.deps.Notifier != nil {
		p.deps.Notifier.RunStarted(run)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RunStarted()
	}

	result := &RunResult{Run: run}
	err := p.execute(ctx, logger, result)
	p.finish(ctx, logger, result, err)
	return result, err
}

func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, result *RunResult) error {
	run := result.Run

	if p.cfg.Recipient == "" {
		return apperrors.NewAppError(apperrors.ErrNotConfigured,
			"Report recipient is not configured: REPORT_RECIPIENT_EMAIL is required", apperrors.CodeNotConfigured)
	}

	fetch := p.deps.Reader.FetchRecent(ctx, p.cfg.Window)
	if !fetch.OK() {
		run.FetchFailed = true
		fetchErr := fetch.Err
		if !errors.Is(fetchErr, apperrors.ErrFetchFailed) {
			fetchErr = fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, fetchErr)
		}
		if p.cfg.FailurePolicy == FailClosed {
			return fetchErr
		}
		logger.Warn("mailbox fetch failed, continuing with an empty report", slog.Any("error", fetchErr))
	}
	run.FetchedCount = len(fetch.Messages)
	logger.Info("messages fetched", slog.Int("count", run.FetchedCount), slog.Duration("window", p.cfg.Window))

	var digests []models.Digest
	if len(fetch.Messages) > 0 {
		var fallbacks int
		digests, fallbacks = summarizer.SummarizeBatch(ctx, p.deps.Summarizer, fetch.Messages, summarizer.BatchOptions{
			Concurrency: p.cfg.Concurrency,
			Logger:      logger,
		})
		run.FallbackCount = fallbacks
	}
	run.DigestCount = len(digests)

	result.Data = models.NewReportData(p.deps.Now(), digests)
	p.archive(logger, run, result.Data)

	result.Send = p.deps.Sender.SendTemplated(ctx, p.cfg.Recipient, p.cfg.Subject, report.SummaryTemplate, result.Data)
	if p.deps.Metrics != nil {
		label := "success"
		if !result.Send.Success {
			label = string(result.Send.Kind)
		}
		p.deps.Metrics.EmailSent(label)
	}
	if err := mailer.ResultError(result.Send); err != nil {
		return err
	}

	run.Message = result.Send.Message
	return nil
}

func (p *Pipeline) archive(logger *slog.Logger, run *models.ReportRun, data models.ReportData) {
	if p.deps.Archive == nil || p.deps.Renderer == nil {
		return
	}
	html, err := p.deps.Renderer.Render(data)
	if err != nil {
		logger.Warn("failed to render report for archive", slog.Any("error", err))
		return
	}
	path, err := p.deps.Archive.Save(run.ID, run.StartedAt, html)
	if err != nil {
		logger.Warn("failed to archive report", slog.Any("error", err))
		return
	}
	run.ArchivePath = path
}

func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, result *RunResult, err error) {
	run := result.Run
	finished := p.deps.Now().UTC()
	run.FinishedAt = &finished

	if err != nil {
		run.Status = models.RunStatusFailed
		run.Message = err.Error()
		logger.Error("report run failed",
			slog.String("code", apperrors.GetErrorCode(err)),
			slog.Any("error", err),
			slog.Int("fetched", run.FetchedCount),
			slog.Bool("fetch_failed", run.FetchFailed))
	} else {
		run.Status = models.RunStatusSucceeded
		logger.Info("report run finished",
			slog.Int("fetched", run.FetchedCount),
			slog.Int("digests", run.DigestCount),
			slog.Int("fallbacks", run.FallbackCount),
			slog.Bool("fetch_failed", run.FetchFailed),
			slog.Duration("duration", run.Duration()))
	}

	p.persist(ctx, logger, run, false)
	if p.deps.Notifier != nil {
		p.deps.Notifier.RunFinished(run)
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.RunFinished(run.Trigger, run.Status, run.FetchedCount, run.FallbackCount, run.Duration())
	}
	p.prune(ctx, logger, finished)
}

// prune drops run history and archived reports older than the retention period
func (p *Pipeline) prune(ctx context.Context, logger *slog.Logger, now time.Time) {
	if p.cfg.Retention <= 0 || p.deps.Runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	removed, err := p.deps.Runs.DeleteFinishedBefore(ctx, now.Add(-p.cfg.Retention))
	if err != nil {
		logger.Warn("failed to prune report history", slog.Any("error", err))
		return
	}
	if len(removed) == 0 {
		return
	}

	archives := 0
	for _, old := range removed {
		if old.ArchivePath == "" || p.deps.Archive == nil {
			continue
		}
		if err := p.deps.Archive.Delete(old.ArchivePath); err != nil {
			logger.Warn("failed to delete archived report",
				slog.String("path", old.ArchivePath),
				slog.Any("error", err))
			continue
		}
		archives++
	}
	logger.Info("pruned report history", slog.Int("runs", len(removed)), slog.Int("archives", archives))
}

// persist writes run history. It outlives the run context so a timed-out run is still recorded.
func (p *Pipeline) persist(ctx context.Context, logger *slog.Logger, run *models.ReportRun, create bool) {
	if p.deps.Runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	var err error
	if create {
		err = p.deps.Runs.Create(ctx, run)
	} else {
		err = p.deps.Runs.Update(ctx, run)
	}
	if err != nil {
		logger.Error("failed to record report run", slog.Bool("create", create), slog.Any("error", err))
	}
}
