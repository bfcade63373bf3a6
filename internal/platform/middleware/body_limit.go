package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// fallbackLimit is used when a size string cannot be parsed.
const fallbackLimit = 1 << 20

// BodyLimit returns middleware that caps request body size. defaultLimit
// covers most endpoints; analyticsLimit covers POST bodies under
// /api/v1/analytics/, where a quarter of per-room daily series for a large
// facility runs well past the default.
//
// Sizes are strings like "512K", "1M" or "10M"; a bare number is bytes.
func BodyLimit(defaultLimit, analyticsLimit string) echo.MiddlewareFunc {
	standard := parseLimit(defaultLimit)
	analytics := parseLimit(analyticsLimit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}

			limit := standard
			if req.Method == http.MethodPost && strings.HasPrefix(req.URL.Path, "/api/v1/analytics/") {
				limit = analytics
			}

			// Reject on the declared length when the client sends one.
			if req.ContentLength > limit {
				return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit))
			}

			// The declared length can be absent or wrong, so the limit is
			// also enforced while the handler reads.
			req.Body = &cappedBody{body: req.Body, left: limit}
			return next(c)
		}
	}
}

// cappedBody fails the read that crosses the limit.
type cappedBody struct {
	body io.ReadCloser
	left int64
	over bool
}

func (cb *cappedBody) Read(p []byte) (int, error) {
	if cb.over {
		return 0, errBodyTooLarge()
	}
	// Read one byte past the remaining allowance so overflow is detected.
	if int64(len(p)) > cb.left+1 {
		p = p[:cb.left+1]
	}
	n, err := cb.body.Read(p)
	cb.left -= int64(n)
	if cb.left < 0 {
		cb.over = true
		return 0, errBodyTooLarge()
	}
	return n, err
}

func (cb *cappedBody) Close() error { return cb.body.Close() }

func errBodyTooLarge() error {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
}

// parseLimit converts sizes like "512K", "1M" or "2G" (a trailing B is also
// accepted, e.g. "10MB") into bytes. Unparseable input falls back to 1 MB.
func parseLimit(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallbackLimit
	}

	s = strings.TrimSuffix(s, "B")
	shift := 0
	switch {
	case strings.HasSuffix(s, "K"):
		shift = 10
	case strings.HasSuffix(s, "M"):
		shift = 20
	case strings.HasSuffix(s, "G"):
		shift = 30
	}
	if shift > 0 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallbackLimit
	}
	return n << shift
}
