package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/repository"
	"github.com/welldanyogia/webrana-mail-digest/internal/scheduler"
)

// SchedulerStatus exposes the scheduler's state
type SchedulerStatus interface {
	IsRunning() bool
	Jobs() []scheduler.JobInfo
}

// RunState reports whether a report run is executing
type RunState interface {
	Running() bool
}

// StatusHandler handles GET /status
type StatusHandler struct {
	scheduler  SchedulerStatus
	pipeline   RunState
	sender     SenderStatus
	summarizer SummarizerStatus
	runs       repository.ReportRunRepository
	logger     *slog.Logger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(sched SchedulerStatus, pipeline RunState, sender SenderStatus, summarizer SummarizerStatus, runs repository.ReportRunRepository, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		scheduler:  sched,
		pipeline:   pipeline,
		sender:     sender,
		summarizer: summarizer,
		runs:       runs,
		logger:     logger,
	}
}

// StatusResponse describes the scheduler and collaborator configuration
type StatusResponse struct {
	SchedulerRunning bool                `json:"schedulerRunning"`
	ScheduledJobs    []scheduler.JobInfo `json:"scheduledJobs"`
	RunInProgress    bool                `json:"runInProgress"`
	EmailConfigured  bool                `json:"emailConfigured"`
	LLMAvailable     bool                `json:"llmAvailable"`
	LastRun          *models.ReportRun   `json:"lastRun"`
}

// Status handles GET /status
func (h *StatusHandler) Status(c echo.Context) error {
	jobs := h.scheduler.Jobs()
	if jobs == nil {
		jobs = []scheduler.JobInfo{}
	}

	resp := StatusResponse{
		SchedulerRunning: h.scheduler.IsRunning(),
		ScheduledJobs:    jobs,
		RunInProgress:    h.pipeline != nil && h.pipeline.Running(),
		EmailConfigured:  h.sender.Configured(),
		LLMAvailable:     h.summarizer.Available(),
	}

	last, err := h.runs.Latest(c.Request().Context())
	switch {
	case err == nil:
		resp.LastRun = last
	case errors.Is(err, repository.ErrNotFound):
	default:
		// Status stays useful without history
		h.logger.Warn("failed to load latest report run", slog.String("error", err.Error()))
	}

	return c.JSON(http.StatusOK, resp)
}
