package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-mail-digest/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-mail-digest/internal/errors"
)

// GmailConsent runs the OAuth consent exchange for the Gmail reader
type GmailConsent interface {
	AuthCodeURL() (string, string, error)
	Exchange(ctx context.Context, code, state string) error
	HasToken(ctx context.Context) bool
}

// AuthHandler serves the Gmail authorization flow
type AuthHandler struct {
	consent GmailConsent
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(consent GmailConsent, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{consent: consent, logger: logger}
}

// GmailURL handles GET /api/auth/gmail
func (h *AuthHandler) GmailURL(c echo.Context) error {
	url, _, err := h.consent.AuthCodeURL()
	if err != nil {
		h.logger.Error("failed to build gmail consent url", slog.String("error", err.Error()))
		return response.InternalError(c, "failed to build consent url")
	}

	return response.Success(c, map[string]interface{}{
		"auth_url":   url,
		"authorized": h.consent.HasToken(c.Request().Context()),
	})
}

// Callback handles GET /oauth2/callback
func (h *AuthHandler) Callback(c echo.Context) error {
	if reason := c.QueryParam("error"); reason != "" {
		h.logger.Warn("gmail consent denied", slog.String("reason", reason))
		return response.BadRequest(c, "authorization was not granted: "+reason)
	}

	code := c.QueryParam("code")
	if code == "" {
		return response.BadRequest(c, "missing authorization code")
	}

	if err := h.consent.Exchange(c.Request().Context(), code, c.QueryParam("state")); err != nil {
		h.logger.Error("gmail authorization failed", slog.String("error", err.Error()))
		if apperrors.IsInvalidInput(err) {
			return response.BadRequest(c, "invalid or expired authorization state")
		}
		return response.Error(c, err)
	}

	return c.HTML(http.StatusOK, "<p>Gmail authorized. You can close this window.</p>")
}
