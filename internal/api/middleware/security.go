package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// SecurityHeaders sets conservative browser headers. API and metrics
// responses are never cached.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("Referrer-Policy", "same-origin")
			// The admin page is self-contained: inline script and style only.
			h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; frame-ancestors 'self'")

			if noStore(c.Request().URL.Path) {
				h.Set("Cache-Control", "no-store")
			}

			return next(c)
		}
	}
}

func noStore(path string) bool {
	return strings.HasPrefix(path, "/api") || path == "/metrics" || path == "/health"
}
