package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func applySecurityHeaders(t *testing.T, target string, handler echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	return rec, SecurityHeaders()(handler)(c)
}

func TestSecurityHeaders_HardensJSONResponses(t *testing.T) {
	rec, err := applySecurityHeaders(t, "/api/v1/metric-issues", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]int{"total": 12})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"X-XSS-Protection":          "0",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "no-referrer",
		"Permissions-Policy":        "camera=(), microphone=(), geolocation=()",
		"Cache-Control":             "no-store",
	}
	for header, value := range want {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("header %s = %q, want %q", header, got, value)
		}
	}
}

func TestSecurityHeaders_CaseResponsesNotCached(t *testing.T) {
	rec, err := applySecurityHeaders(t, "/api/v1/cases/8d6a2f1e", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "In Progress"})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want %q", got, "no-store")
	}
}

func TestSecurityHeaders_HandlerStillRuns(t *testing.T) {
	called := false
	rec, err := applySecurityHeaders(t, "/api/v1/facilities", func(c echo.Context) error {
		called = true
		return c.String(http.StatusCreated, "created")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected handler to be called")
	}
	if rec.Body.String() != "created" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "created")
	}
}

func TestSecurityHeaders_SetEvenWhenHandlerErrors(t *testing.T) {
	rec, err := applySecurityHeaders(t, "/api/v1/facilities/unknown", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "facility not found")
	})
	if err == nil {
		t.Fatal("expected error from handler")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", httpErr.Code, http.StatusNotFound)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on error responses")
	}
}
