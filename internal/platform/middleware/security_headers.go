package middleware

import (
	"github.com/labstack/echo/v4"
)

// securityHeaders are set on every response. The API serves JSON only, so
// the CSP denies all resource loading, and case and surgeon data never
// belongs in shared caches, so responses are marked no-store across the
// board.
var securityHeaders = [...][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"X-XSS-Protection", "0"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Referrer-Policy", "no-referrer"},
	{"Permissions-Policy", "camera=(), microphone=(), geolocation=()"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders returns middleware that sets hardening headers before the
// handler runs, so they are present even when the handler errors.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range securityHeaders {
				h.Set(kv[0], kv[1])
			}
			return next(c)
		}
	}
}
