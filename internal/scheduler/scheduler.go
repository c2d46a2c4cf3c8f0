// Package scheduler triggers report runs on fixed intervals using gocron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/pipeline"
)

// Job IDs
const (
	JobDailyReport = "daily_email_report"
	JobDebugReport = "debug_report"
)

// Runner executes one report run
type Runner interface {
	Run(ctx context.Context, trigger string) (*pipeline.RunResult, error)
}

// Job is one interval-driven report trigger
type Job struct {
	ID       string
	Trigger  string
	Interval time.Duration
}

// JobInfo describes a scheduled job for status output
type JobInfo struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Trigger string    `json:"trigger"`
	NextRun time.Time `json:"next_run_time"`
}

// Config holds scheduler intervals
type Config struct {
	ReportInterval time.Duration
	// Debug adds a short-interval job for local testing
	Debug         bool
	DebugInterval time.Duration
}

// Scheduler runs report jobs on a gocron scheduler. The first run of a job
// happens one interval after Start, and a job never overlaps itself.
type Scheduler struct {
	runner Runner
	jobs   []Job
	logger *slog.Logger

	mu     sync.Mutex
	cron   gocron.Scheduler
	cancel context.CancelFunc
}

// New creates a new Scheduler
func New(runner Runner, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 24 * time.Hour
	}
	if cfg.DebugInterval <= 0 {
		cfg.DebugInterval = 60 * time.Second
	}

	jobs := []Job{{ID: JobDailyReport, Trigger: models.TriggerScheduled, Interval: cfg.ReportInterval}}
	if cfg.Debug {
		jobs = append(jobs, Job{ID: JobDebugReport, Trigger: models.TriggerDebug, Interval: cfg.DebugInterval})
	}

	return &Scheduler{
		runner: runner,
		jobs:   jobs,
		logger: logger,
	}
}

// Start registers every job and starts the underlying scheduler.
// Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	cron, err := gocron.NewScheduler(gocron.WithLogger(s.logger))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	for _, job := range s.jobs {
		_, err := cron.NewJob(
			gocron.DurationJob(job.Interval),
			gocron.NewTask(func() { s.execute(ctx, job) }),
			gocron.WithName(job.ID),
			gocron.WithTags(job.Trigger),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = cron.Shutdown()
			return fmt.Errorf("failed to schedule %s: %w", job.ID, err)
		}
		s.logger.Info("scheduled job added",
			slog.String("job_id", job.ID),
			slog.Duration("interval", job.Interval))
	}

	cron.Start()
	s.cron = cron
	s.cancel = cancel
	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels in-flight runs and waits for them to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cron, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if cron == nil {
		return
	}

	cancel()
	if err := cron.Shutdown(); err != nil {
		s.logger.Warn("scheduler shutdown", slog.Any("error", err))
	}
	s.logger.Info("scheduler stopped")
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Jobs lists scheduled jobs with their next run time, ordered by ID.
// It is empty while the scheduler is stopped.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	cron := s.cron
	s.mu.Unlock()

	if cron == nil {
		return []JobInfo{}
	}

	intervals := make(map[string]time.Duration, len(s.jobs))
	for _, job := range s.jobs {
		intervals[job.ID] = job.Interval
	}

	scheduled := cron.Jobs()
	infos := make([]JobInfo, 0, len(scheduled))
	for _, j := range scheduled {
		next, err := j.NextRun()
		if err != nil {
			continue
		}
		infos = append(infos, JobInfo{
			ID:      j.Name(),
			Name:    j.Name(),
			Trigger: fmt.Sprintf("interval[%s]", intervals[j.Name()]),
			NextRun: next,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (s *Scheduler) execute(ctx context.Context, job Job) {
	s.logger.Info("running scheduled job", slog.String("job_id", job.ID))

	_, err := s.runner.Run(ctx, job.Trigger)
	switch {
	case err == nil:
		s.logger.Info("scheduled job finished", slog.String("job_id", job.ID))
	case apperrors.IsRunInProgress(err):
		s.logger.Info("skipping scheduled job, a report run is already in progress", slog.String("job_id", job.ID))
	default:
		// The loop keeps going; the next tick gets a fresh attempt.
		s.logger.Error("scheduled job failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
}
