// Package middleware provides HTTP middleware for the mail digest API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/webrana-mail-digest/internal/logger"
)

// PublicPaths never require an API key
var PublicPaths = []string{"/", "/health", "/ready", "/oauth2/callback"}

// APIKeyAuth validates the API key from the Authorization header.
// Websocket upgrades may pass it as the api_key query parameter since browsers cannot set headers there.
// An empty apiKey disables the check.
func APIKeyAuth(apiKey string, secLogger *logger.SecurityLogger, log *slog.Logger) echo.MiddlewareFunc {
	if apiKey == "" && log != nil {
		log.Warn("API_KEY not set - API is UNSECURED")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if apiKey == "" || isPublic(path) {
				return next(c)
			}

			token := strings.TrimSpace(strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer "))
			if token == "" && path == "/ws" {
				token = c.QueryParam("api_key")
			}

			if token == "" {
				if secLogger != nil {
					secLogger.AuthFailure(c.RealIP(), path, "missing authorization header")
				}
				return echo.NewHTTPError(401, map[string]string{
					"error": "missing authorization header",
					"code":  "UNAUTHORIZED",
				})
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				if secLogger != nil {
					secLogger.AuthFailure(c.RealIP(), path, "invalid API key")
				}
				return echo.NewHTTPError(401, map[string]string{
					"error": "invalid API key",
					"code":  "UNAUTHORIZED",
				})
			}

			return next(c)
		}
	}
}

func isPublic(path string) bool {
	for _, p := range PublicPaths {
		if path == p {
			return true
		}
	}
	return false
}
