package dataquality

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rdevine16/or-flow-app-sub009/pkg/pagination"
)

type Handler struct {
	svc      *Service
	detector *Detector
}

func NewHandler(svc *Service, detector *Detector) *Handler {
	return &Handler{svc: svc, detector: detector}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/jobs/stale-case-detection", h.RunDetection)
	api.GET("/facilities/:id/metric-issues", h.ListFacilityIssues)
	api.GET("/metric-issues/types", h.ListIssueTypes)
	api.GET("/metric-issues/:id", h.GetIssue)
	api.POST("/metric-issues/:id/resolve", h.ResolveIssue)
	api.POST("/metric-issues/resolve", h.ResolveIssues)
	api.POST("/metric-issues/:id/reopen", h.ReopenIssue)
}

// RunDetection executes the full detection sweep and returns the report.
// The job itself never fails partway; a 500 means the facility list could
// not be loaded at all.
func (h *Handler) RunDetection(c echo.Context) error {
	report, err := h.detector.Run(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ListFacilityIssues(c echo.Context) error {
	facilityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid facility id")
	}

	params := pagination.FromContext(c)
	unresolvedOnly := c.QueryParam("unresolved") == "true"

	issues, total, err := h.svc.ListIssues(c.Request().Context(), facilityID, unresolvedOnly, params.Limit, params.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(issues, total, params.Limit, params.Offset))
}

func (h *Handler) ListIssueTypes(c echo.Context) error {
	types, err := h.svc.ListIssueTypes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, types)
}

func (h *Handler) GetIssue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid issue id")
	}

	issue, err := h.svc.GetIssue(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "issue not found")
	}
	return c.JSON(http.StatusOK, issue)
}

func (h *Handler) ResolveIssue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid issue id")
	}

	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	issue, err := h.svc.ResolveIssue(c.Request().Context(), id, req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, issue)
}

type batchResolveRequest struct {
	IssueIDs []uuid.UUID `json:"issue_ids"`
	ResolveRequest
}

// ResolveIssues applies one resolution to a batch of issues. The response is
// always 200 with per-issue failures listed, so one bad id does not mask the
// issues that did resolve.
func (h *Handler) ResolveIssues(c echo.Context) error {
	var req batchResolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.svc.ResolveIssues(c.Request().Context(), req.IssueIDs, req.ResolveRequest)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) ReopenIssue(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid issue id")
	}

	issue, err := h.svc.ReopenIssue(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, issue)
}
