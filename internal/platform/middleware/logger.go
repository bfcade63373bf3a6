package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Logger emits one structured line per request. When a handler returns an
// error the response is not committed yet, so the status is resolved from
// the error itself and the line carries the code the client will see.
func Logger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()

			status := res.Status
			if err != nil && !res.Committed {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}

			var evt *zerolog.Event
			switch {
			case status >= http.StatusInternalServerError:
				evt = logger.Error().Err(err)
			case status >= http.StatusBadRequest:
				evt = logger.Warn().Err(err)
			default:
				evt = logger.Info()
			}

			rid, _ := c.Get("request_id").(string)
			evt.
				Str("request_id", rid).
				Str("method", req.Method).
				Str("route", c.Path()).
				Str("path", req.URL.Path).
				Int("status", status).
				Int64("bytes_out", res.Size).
				Dur("latency", time.Since(start)).
				Str("remote_ip", c.RealIP()).
				Msg("request")

			return err
		}
	}
}
