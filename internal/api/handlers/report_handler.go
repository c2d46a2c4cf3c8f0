package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-mail-digest/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/pipeline"
	"github.com/welldanyogia/webrana-mail-digest/internal/repository"
	"github.com/welldanyogia/webrana-mail-digest/internal/storage"
	"github.com/welldanyogia/webrana-mail-digest/internal/validator"
)

// TriggerSuccessMessage is returned when a manual run delivers its report
const TriggerSuccessMessage = "Report generation triggered successfully"

// ReportRunner executes one report run
type ReportRunner interface {
	Run(ctx context.Context, trigger string) (*pipeline.RunResult, error)
}

// ReportHandler handles report triggering and run history
type ReportHandler struct {
	runner    ReportRunner
	runs      repository.ReportRunRepository
	archive   storage.ReportArchive
	secLogger *logger.SecurityLogger
	logger    *slog.Logger
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(runner ReportRunner, runs repository.ReportRunRepository, archive storage.ReportArchive, secLogger *logger.SecurityLogger, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		runner:    runner,
		runs:      runs,
		archive:   archive,
		secLogger: secLogger,
		logger:    logger,
	}
}

// Trigger handles POST /trigger-report. The run executes synchronously.
func (h *ReportHandler) Trigger(c echo.Context) error {
	h.logger.Info("manual report trigger requested")

	// A client hanging up must not abandon a half-sent report; the pipeline bounds the run itself.
	ctx := context.WithoutCancel(c.Request().Context())

	result, err := h.runner.Run(ctx, models.TriggerManual)
	if err != nil {
		if apperrors.IsRunInProgress(err) {
			h.logger.Warn("manual report trigger rejected, run in progress")
			return response.Error(c, err)
		}

		h.logger.Error("manual report run failed", slog.String("error", err.Error()))
		msg := "Error triggering report: " + err.Error()
		return response.Error(c, apperrors.NewAppError(err, msg, apperrors.GetErrorCode(err)))
	}

	var run *models.ReportRun
	if result != nil {
		run = result.Run
	}
	return response.SuccessWithMessage(c, run, TriggerSuccessMessage)
}

// ListRuns handles GET /api/reports/runs
func (h *ReportHandler) ListRuns(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, offset = validator.ValidatePagination(limit, offset)

	runs, total, err := h.runs.List(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list report runs", slog.String("error", err.Error()))
		return response.InternalError(c, "failed to list report runs")
	}
	if runs == nil {
		runs = []models.ReportRun{}
	}

	return response.Paginated(c, runs, total, limit, offset)
}

// GetRun handles GET /api/reports/runs/:id
func (h *ReportHandler) GetRun(c echo.Context) error {
	run, err := h.lookup(c)
	if err != nil || run == nil {
		return err
	}
	return response.Success(c, run)
}

// RunHTML handles GET /api/reports/runs/:id/html and streams the archived report
func (h *ReportHandler) RunHTML(c echo.Context) error {
	run, err := h.lookup(c)
	if err != nil || run == nil {
		return err
	}

	if run.ArchivePath == "" || h.archive == nil {
		return response.NotFound(c, "report archive not available for this run")
	}

	rc, err := h.archive.Get(run.ArchivePath)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrPathTraversal):
			if h.secLogger != nil {
				h.secLogger.PathTraversalAttempt(c.RealIP(), c.Request().URL.Path, run.ArchivePath)
			}
			return response.BadRequest(c, "invalid archive path")
		case errors.Is(err, storage.ErrFileNotFound):
			return response.NotFound(c, "archived report not found")
		default:
			h.logger.Error("failed to open archived report",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
			return response.InternalError(c, "failed to read archived report")
		}
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, echo.MIMETextHTMLCharsetUTF8, rc)
}

// lookup resolves the :id param. A nil run with a nil error means the response was already written.
func (h *ReportHandler) lookup(c echo.Context) (*models.ReportRun, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, response.BadRequest(c, "invalid run id")
	}

	run, err := h.runs.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, response.NotFound(c, "report run not found")
		}
		h.logger.Error("failed to get report run", slog.String("error", err.Error()))
		return nil, response.InternalError(c, "failed to get report run")
	}
	return run, nil
}
