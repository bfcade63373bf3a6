package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	handler := func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if seen == "" {
		t.Fatal("expected request_id on the context")
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected generated id to be a UUID, got %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected response header %q, got %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities", nil)
	req.Header.Set(RequestIDHeader, "upstream-trace-42")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid, _ := c.Get("request_id").(string); rid != "upstream-trace-42" {
			t.Errorf("expected upstream-trace-42, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := rec.Header().Get(RequestIDHeader); got != "upstream-trace-42" {
		t.Errorf("expected upstream-trace-42 in response header, got %s", got)
	}
}

func TestLogger_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cases/123", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/cases/:id")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	line := buf.String()
	for _, want := range []string{
		`"method":"GET"`,
		`"path":"/api/v1/cases/123"`,
		`"route":"/api/v1/cases/:id"`,
		`"status":200`,
		`"bytes_out":2`,
		`"message":"request"`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("expected log line to contain %s, got %s", want, line)
		}
	}
}

func TestLogger_ClientErrorsLogAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/insights", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "overview is required")
	}

	if err := Logger(logger)(handler)(c); err == nil {
		t.Fatal("expected handler error to propagate")
	}

	line := buf.String()
	if !strings.Contains(line, `"level":"warn"`) {
		t.Errorf("expected warn-level log for a 400, got %s", line)
	}
	if !strings.Contains(line, `"status":400`) {
		t.Errorf("expected resolved status 400 in log, got %s", line)
	}
	if !strings.Contains(line, "overview is required") {
		t.Errorf("expected error detail in log, got %s", line)
	}
}

func TestLogger_ServerErrorsLogAtError(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return errors.New("pool exhausted")
	}

	if err := Logger(logger)(handler)(c); err == nil {
		t.Fatal("expected handler error to propagate")
	}

	line := buf.String()
	if !strings.Contains(line, `"level":"error"`) {
		t.Errorf("expected error-level log, got %s", line)
	}
	if !strings.Contains(line, `"status":500`) {
		t.Errorf("expected resolved status 500 in log, got %s", line)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/stale-case-detection", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		panic("nil facility row")
	}

	err := Recovery(logger)(handler)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}

	line := buf.String()
	if !strings.Contains(line, "panic recovered") {
		t.Errorf("expected panic to be logged, got %s", line)
	}
	if !strings.Contains(line, "nil facility row") {
		t.Errorf("expected panic value in log, got %s", line)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	logger := zerolog.Nop()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Recovery(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRecovery_ReRaisesAbortHandler(t *testing.T) {
	logger := zerolog.Nop()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/facilities", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		panic(http.ErrAbortHandler)
	}

	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("expected http.ErrAbortHandler to propagate, got %v", r)
		}
	}()
	Recovery(logger)(handler)(c)
	t.Error("expected panic to propagate")
}
