package insights

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func postInsights(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/insights", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, h.Generate(c)
}

func TestHandlerGenerate_ReturnsInsights(t *testing.T) {
	h := NewHandler(Config{})
	body := `{"overview": {"periodDays": 30, "orUtilization": {"value": 45, "target": 75, "targetMet": false, "roomDaysActive": 20}}}`

	rec, err := postInsights(t, h, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(resp.Data))
	}
	if resp.Data[0].ID != "utilization-below-target" || resp.Data[0].Severity != SeverityCritical {
		t.Errorf("got %s/%s, want utilization-below-target/critical", resp.Data[0].ID, resp.Data[0].Severity)
	}
	if resp.GeneratedAt.IsZero() {
		t.Error("generatedAt should be set")
	}
}

func TestHandlerGenerate_EmptyResultIsAnArray(t *testing.T) {
	h := NewHandler(Config{})
	body := `{"overview": {"orUtilization": {"value": 60, "target": 75}}, "config": {"minSeverityToShow": "critical"}}`

	rec, err := postInsights(t, h, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("empty result must serialize as [], got %s", rec.Body.String())
	}
}

func TestHandlerGenerate_RequestConfigOverridesDefaults(t *testing.T) {
	h := NewHandler(Config{MaxInsights: 6})
	body := `{"overview": {"periodDays": 30, "fcots": {"value": 72, "target": 80, "lateCount": 7, "totalFirstCases": 25}, "orUtilization": {"value": 45, "target": 75, "roomDaysActive": 20}}, "config": {"maxInsights": 1}}`

	rec, err := postInsights(t, h, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("maxInsights override ignored, got %d insights", len(resp.Data))
	}
}

func TestHandlerGenerate_MissingOverview(t *testing.T) {
	h := NewHandler(Config{})

	_, err := postInsights(t, h, `{"config": {"maxInsights": 3}}`)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected a 400, got %v", err)
	}
	if msg, _ := he.Message.(string); msg != "overview is required" {
		t.Errorf("message = %q, want %q", he.Message, "overview is required")
	}
}

func TestHandlerGenerate_MalformedBody(t *testing.T) {
	h := NewHandler(Config{})

	_, err := postInsights(t, h, `{"overview": `)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected a 400, got %v", err)
	}
}

func TestHandlerDefaults(t *testing.T) {
	h := NewHandler(Config{ORHourlyRate: 2160})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics/insights/defaults", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Defaults(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got Config
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RevenuePerORMinute != 36 {
		t.Errorf("RevenuePerORMinute = %v, want 36 from the hourly rate", got.RevenuePerORMinute)
	}
	if got.MaxInsights != 6 || got.MinSeverityToShow != SeverityInfo {
		t.Errorf("defaults not resolved: %+v", got)
	}
}
