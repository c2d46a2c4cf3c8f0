package handlers

import (
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-mail-digest/internal/api/response"
	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
	"github.com/welldanyogia/webrana-mail-digest/internal/mailer"
	"github.com/welldanyogia/webrana-mail-digest/internal/models"
	"github.com/welldanyogia/webrana-mail-digest/internal/report"
)

// EmailHandler handles ad-hoc send requests
type EmailHandler struct {
	sender    mailer.Sender
	secLogger *logger.SecurityLogger
	logger    *slog.Logger
}

// NewEmailHandler creates a new EmailHandler
func NewEmailHandler(sender mailer.Sender, secLogger *logger.SecurityLogger, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		sender:    sender,
		secLogger: secLogger,
		logger:    logger,
	}
}

// Send handles POST /send-email.
// The body is wrapped in the message template before delivery.
func (h *EmailHandler) Send(c echo.Context) error {
	var req models.EmailSendRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if strings.ContainsAny(req.Subject, "\r\n") && h.secLogger != nil {
		h.secLogger.HeaderInjectionAttempt(c.RealIP(), "subject")
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	h.logger.Info("received email request", slog.String("to", req.ToEmail))

	result := h.sender.SendTemplated(c.Request().Context(), req.ToEmail, req.Subject, report.MessageTemplate, map[string]string{
		"subject": req.Subject,
		"body":    req.Body,
	})
	if !result.Success {
		h.logger.Error("ad-hoc send failed",
			slog.String("to", req.ToEmail),
			slog.String("kind", string(result.Kind)),
			slog.String("error", result.Message),
		)
		return response.Error(c, mailer.ResultError(result))
	}

	return response.SuccessWithMessage(c, nil, result.Message)
}
