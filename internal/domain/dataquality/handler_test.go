package dataquality

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestHandler(store *mockDetectionStore) (*Handler, *mockIssueRepo, *mockTypeRepo) {
	issues := newMockIssueRepo()
	types := newMockTypeRepo()
	det := NewDetector(store, issues, types, DetectorConfig{}, zerolog.Nop())
	det.now = func() time.Time { return detectNow }
	return NewHandler(NewService(issues, types), det), issues, types
}

func TestRunDetectionEndpoint(t *testing.T) {
	facility := FacilityRef{ID: uuid.New(), Name: "Mercy General"}
	store := &mockDetectionStore{
		facilities: []FacilityRef{facility},
		scheduled: map[uuid.UUID][]StaleCase{
			facility.ID: {{CaseID: uuid.New(), CaseNumber: "S-1", Anchor: detectNow.Add(-96 * time.Hour)}},
		},
	}
	h, _, _ := newTestHandler(store)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/jobs/stale-case-detection", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.RunDetection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var report DetectionReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if !report.Success {
		t.Error("expected success")
	}
	if report.Summary.TotalStaleCasesCreated != 1 {
		t.Errorf("expected 1 stale issue created, got %d", report.Summary.TotalStaleCasesCreated)
	}
	if len(report.Results) != 1 || report.Results[0].FacilityName != "Mercy General" {
		t.Errorf("expected one facility result, got %+v", report.Results)
	}
}

func TestRunDetectionEndpointFailure(t *testing.T) {
	h, _, _ := newTestHandler(&mockDetectionStore{failList: true})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/jobs/stale-case-detection", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.RunDetection(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("expected failure body, got %s", rec.Body.String())
	}
}

func TestListFacilityIssuesEndpoint(t *testing.T) {
	h, issues, types := newTestHandler(&mockDetectionStore{})
	facilityID := uuid.New()
	resolvedAt := time.Now()
	issues.seed(&MetricIssue{FacilityID: facilityID, CaseID: uuid.New(), IssueTypeID: types.issueTypes[IssueStaleInProgress], DetectedAt: time.Now()})
	issues.seed(&MetricIssue{FacilityID: facilityID, CaseID: uuid.New(), IssueTypeID: types.issueTypes[IssueNoActivity], DetectedAt: time.Now(), ResolvedAt: &resolvedAt})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?unresolved=true", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(facilityID.String())

	if err := h.ListFacilityIssues(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Data  []MetricIssue `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Errorf("expected one unresolved issue, got total=%d len=%d", resp.Total, len(resp.Data))
	}
}

func TestListFacilityIssuesInvalidID(t *testing.T) {
	h, _, _ := newTestHandler(&mockDetectionStore{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.ListFacilityIssues(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestResolveIssueEndpoint(t *testing.T) {
	h, issues, types := newTestHandler(&mockDetectionStore{})
	id := issues.seed(&MetricIssue{FacilityID: uuid.New(), CaseID: uuid.New(), IssueTypeID: types.issueTypes[IssueStaleInProgress], DetectedAt: time.Now()})

	e := echo.New()
	body := `{"resolution_type":"corrected","resolved_by":"jmorrison"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.ResolveIssue(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !issues.issues[id].Resolved() {
		t.Error("issue should be resolved")
	}
}

func TestResolveIssueEndpointRejectsUnknownType(t *testing.T) {
	h, issues, types := newTestHandler(&mockDetectionStore{})
	id := issues.seed(&MetricIssue{FacilityID: uuid.New(), CaseID: uuid.New(), IssueTypeID: types.issueTypes[IssueStaleInProgress], DetectedAt: time.Now()})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"resolution_type":"wontfix"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	err := h.ResolveIssue(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestResolveIssuesBatchEndpoint(t *testing.T) {
	h, issues, types := newTestHandler(&mockDetectionStore{})
	first := issues.seed(&MetricIssue{FacilityID: uuid.New(), CaseID: uuid.New(), IssueTypeID: types.issueTypes[IssueStaleInProgress], DetectedAt: time.Now()})
	second := issues.seed(&MetricIssue{FacilityID: uuid.New(), CaseID: uuid.New(), IssueTypeID: types.issueTypes[IssueNoActivity], DetectedAt: time.Now()})

	e := echo.New()
	body := `{"issue_ids":["` + first.String() + `","` + second.String() + `","` + uuid.NewString() + `"],"resolution_type":"not_an_issue"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ResolveIssues(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("batch resolve should stay 200 on partial failure, got %d", rec.Code)
	}

	var result BatchResolveResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(result.Resolved) != 2 || len(result.Failed) != 1 {
		t.Errorf("expected 2 resolved and 1 failed, got %d/%d", len(result.Resolved), len(result.Failed))
	}
}

func TestReopenIssueEndpoint(t *testing.T) {
	h, issues, types := newTestHandler(&mockDetectionStore{})
	resolvedAt := time.Now()
	rtID := types.resolutionTypes[ResolutionCorrected]
	id := issues.seed(&MetricIssue{
		FacilityID:       uuid.New(),
		CaseID:           uuid.New(),
		IssueTypeID:      types.issueTypes[IssueMilestoneOutOfRange],
		DetectedAt:       resolvedAt.Add(-time.Hour),
		ResolutionTypeID: &rtID,
		ResolvedAt:       &resolvedAt,
	})

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.ReopenIssue(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if issues.issues[id].Resolved() {
		t.Error("issue should be open after reopen")
	}
}

func TestGetIssueEndpoint(t *testing.T) {
	h, issues, types := newTestHandler(&mockDetectionStore{})
	id := issues.seed(&MetricIssue{FacilityID: uuid.New(), CaseID: uuid.New(), IssueTypeID: types.issueTypes[IssueStaleInProgress], DetectedAt: time.Now()})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id.String())

	if err := h.GetIssue(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.GetIssue(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown issue, got %v", err)
	}
}

func TestListIssueTypesEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(&mockDetectionStore{})

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListIssueTypes(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var types []IssueType
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(types) != 4 {
		t.Errorf("expected 4 issue types, got %d", len(types))
	}
}
