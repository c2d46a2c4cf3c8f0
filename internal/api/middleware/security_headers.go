package middleware

import (
	"github.com/labstack/echo/v4"
)

const (
	apiCSP = "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; " +
		"img-src 'self' data:; font-src 'self'; connect-src 'self'; frame-ancestors 'none'"
	// Archived reports are static email HTML: inline styles only, nothing executable.
	reportCSP = "default-src 'none'; style-src 'unsafe-inline'; img-src data:; frame-ancestors 'none'"
)

// ReportHTMLPath is the route serving archived report HTML
const ReportHTMLPath = "/api/reports/runs/:id/html"

// SecureHeaders adds security headers to responses
func SecureHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Frame-Options", "DENY")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

			if c.Path() == ReportHTMLPath {
				h.Set("Content-Security-Policy", reportCSP)
			} else {
				h.Set("Content-Security-Policy", apiCSP)
			}

			// HSTS only over HTTPS
			if c.Scheme() == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			return next(c)
		}
	}
}
