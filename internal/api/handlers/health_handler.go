package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// ServiceName and Version are reported by GET /
const (
	ServiceName = "Mail Digest API"
	Version     = "1.0.0"
)

// SenderStatus reports whether outbound mail credentials are set
type SenderStatus interface {
	Configured() bool
}

// SummarizerStatus reports whether a language model is configured
type SummarizerStatus interface {
	Available() bool
}

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	db         *gorm.DB
	sender     SenderStatus
	summarizer SummarizerStatus
	now        func() time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *gorm.DB, sender SenderStatus, summarizer SummarizerStatus) *HealthHandler {
	return &HealthHandler{
		db:         db,
		sender:     sender,
		summarizer: summarizer,
		now:        time.Now,
	}
}

// HealthServices lists the state of each dependency
type HealthServices struct {
	EmailSenderConfigured bool   `json:"emailSenderConfigured"`
	SummarizerAvailable   bool   `json:"summarizerAvailable"`
	Database              string `json:"database"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string         `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Services  HealthServices `json:"services"`
}

// Info handles GET /
func (h *HealthHandler) Info(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": ServiceName,
		"version": Version,
		"endpoints": map[string]string{
			"send_email":     "/send-email",
			"trigger_report": "/trigger-report",
			"health":         "/health",
			"status":         "/status",
			"report_runs":    "/api/reports/runs",
			"events":         "/ws",
			"metrics":        "/metrics",
		},
	})
}

// Health handles GET /health.
// Missing mail or model credentials are reported but only the database makes the service unhealthy.
func (h *HealthHandler) Health(c echo.Context) error {
	status := "healthy"
	database := "healthy"
	if err := h.ping(c.Request().Context()); err != nil {
		status = "unhealthy"
		database = "unhealthy"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: h.now().UTC(),
		Services: HealthServices{
			EmailSenderConfigured: h.sender != nil && h.sender.Configured(),
			SummarizerAvailable:   h.summarizer != nil && h.summarizer.Available(),
			Database:              database,
		},
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c echo.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database connection failed",
		})
	}

	if err := sqlDB.PingContext(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}

func (h *HealthHandler) ping(ctx context.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
