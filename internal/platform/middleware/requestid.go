package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header used to propagate request correlation IDs.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns each request a correlation ID.
// An inbound X-Request-ID header is honored so upstream proxies can trace
// calls end to end; otherwise a new UUID is generated. The ID is stored on
// the echo context for the logger and echoed back in the response header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}

			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			return next(c)
		}
	}
}
