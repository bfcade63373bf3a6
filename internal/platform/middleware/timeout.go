package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestTimeout returns middleware that sets a context deadline on each
// incoming request. If the deadline is exceeded before the handler completes,
// the request context is cancelled and a 504 Gateway Timeout is returned.
//
// Job endpoints (paths under /api/v1/jobs/) are excluded because detection
// runs scan every facility and routinely outlive an interactive deadline.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, "/api/v1/jobs/") {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()

			c.SetRequest(c.Request().WithContext(ctx))

			// Run handler in a goroutine so we can select on the context.
			done := make(chan error, 1)
			go func() {
				done <- next(c)
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					// If the response was already committed (partial write),
					// there is nothing useful left to send.
					if c.Response().Committed {
						return nil
					}
					return echo.NewHTTPError(http.StatusGatewayTimeout,
						"request processing exceeded the allowed time limit")
				}
				// Other cancellation reasons (e.g. client disconnect).
				return ctx.Err()
			}
		}
	}
}
