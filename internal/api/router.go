// Package api wires the HTTP surface of the mail digest service.
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/welldanyogia/webrana-mail-digest/internal/api/handlers"
	"github.com/welldanyogia/webrana-mail-digest/internal/api/middleware"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailer"
	"github.com/welldanyogia/webrana-mail-digest/internal/metrics"
	"github.com/welldanyogia/webrana-mail-digest/internal/repository"
	"github.com/welldanyogia/webrana-mail-digest/internal/storage"
	"github.com/welldanyogia/webrana-mail-digest/internal/validator"
	"github.com/welldanyogia/webrana-mail-digest/internal/websocket"
)

// DefaultBodyLimit caps request bodies when none is configured
const DefaultBodyLimit = "1M"

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB     *gorm.DB
	Logger *slog.Logger

	Runner     handlers.ReportRunner
	RunState   handlers.RunState
	Scheduler  handlers.SchedulerStatus
	Sender     mailer.Sender
	Summarizer handlers.SummarizerStatus
	Runs       repository.ReportRunRepository
	Archive    storage.ReportArchive
	Hub        *websocket.Hub
	Metrics    *metrics.Metrics
	// Sink is nil unless the development SMTP sink is enabled
	Sink handlers.MessageSink
	// GmailConsent is nil when the IMAP reader is in use
	GmailConsent handlers.GmailConsent

	// Security configuration
	APIKey         string   // API key for authentication (empty = disabled)
	AllowedOrigins []string // Allowed CORS and websocket origins
	Production     bool
	RateLimit      float64 // Requests per second per IP
	RateBurst      int
	BodyLimit      string
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewRequestValidator()

	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	secLogger := logger.NewSecurityLogger(log)

	if cfg.BodyLimit == "" {
		cfg.BodyLimit = DefaultBodyLimit
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}

	// Middleware order matters: recover first, auth last
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.Metrics != nil {
		e.Use(cfg.Metrics.Middleware())
	}
	e.Use(middleware.SecureHeaders())
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.Production))
	e.Use(middleware.RateLimiter(cfg.RateLimit, cfg.RateBurst, secLogger))
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.APIKeyAuth(cfg.APIKey, secLogger, log))

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Sender, cfg.Summarizer)
	statusHandler := handlers.NewStatusHandler(cfg.Scheduler, cfg.RunState, cfg.Sender, cfg.Summarizer, cfg.Runs, log)
	emailHandler := handlers.NewEmailHandler(cfg.Sender, secLogger, log)
	reportHandler := handlers.NewReportHandler(cfg.Runner, cfg.Runs, cfg.Archive, secLogger, log)

	// Public routes
	e.GET("/", healthHandler.Info)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	e.GET("/status", statusHandler.Status)

	e.POST("/send-email", emailHandler.Send)
	e.POST("/send-email/", emailHandler.Send)
	e.POST("/trigger-report", reportHandler.Trigger)
	e.POST("/trigger-report/", reportHandler.Trigger)

	if cfg.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.Metrics.Handler()))
	}

	if cfg.Hub != nil {
		upgrader := websocket.NewSecureUpgrader(middleware.AllowedOrigins(cfg.AllowedOrigins, cfg.Production), secLogger)
		e.GET("/ws", handlers.NewWebSocketHandler(cfg.Hub, upgrader, log).Serve)
	}

	if cfg.GmailConsent != nil {
		authHandler := handlers.NewAuthHandler(cfg.GmailConsent, log)
		e.GET("/oauth2/callback", authHandler.Callback)
		e.GET("/api/auth/gmail", authHandler.GmailURL)
	}

	api := e.Group("/api")

	reports := api.Group("/reports")
	reports.GET("/runs", reportHandler.ListRuns)
	reports.GET("/runs/:id", reportHandler.GetRun)
	reports.GET("/runs/:id/html", reportHandler.RunHTML)

	if cfg.Sink != nil {
		sinkHandler := handlers.NewSinkHandler(cfg.Sink)
		api.GET("/sink/messages", sinkHandler.List)
		api.DELETE("/sink/messages", sinkHandler.Clear)
	}

	return e
}
