package cases

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rdevine16/or-flow-app-sub009/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/facilities", h.CreateFacility)
	api.GET("/facilities", h.ListFacilities)
	api.GET("/facilities/:id", h.GetFacility)
	api.PUT("/facilities/:id", h.UpdateFacility)
	api.DELETE("/facilities/:id", h.DeleteFacility)
	api.GET("/facilities/:id/cases", h.ListFacilityCases)
	api.POST("/facilities/:id/milestones", h.CreateFacilityMilestone)
	api.GET("/facilities/:id/milestones", h.ListFacilityMilestones)
	api.PUT("/facility-milestones/:id", h.UpdateFacilityMilestone)

	api.POST("/cases", h.CreateCase)
	api.GET("/cases/statuses", h.ListCaseStatuses)
	api.GET("/cases/:id", h.GetCase)
	api.PUT("/cases/:id", h.UpdateCase)
	api.DELETE("/cases/:id", h.DeleteCase)
	api.PUT("/cases/:id/status", h.UpdateCaseStatus)
	api.POST("/cases/:id/milestones", h.RecordCaseMilestone)
	api.GET("/cases/:id/milestones", h.ListCaseMilestones)
	api.DELETE("/case-milestones/:id", h.DeleteCaseMilestone)
}

// -- Facility Handlers --

func (h *Handler) CreateFacility(c echo.Context) error {
	var f Facility
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateFacility(c.Request().Context(), &f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetFacility(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.GetFacility(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "facility not found")
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) ListFacilities(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListFacilities(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateFacility(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var f Facility
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.ID = id
	if err := h.svc.UpdateFacility(c.Request().Context(), &f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) DeleteFacility(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteFacility(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Case Handlers --

func (h *Handler) CreateCase(c echo.Context) error {
	var cs Case
	if err := c.Bind(&cs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCase(c.Request().Context(), &cs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cs)
}

func (h *Handler) GetCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cs, err := h.svc.GetCase(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "case not found")
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) ListFacilityCases(c echo.Context) error {
	facilityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid facility id")
	}
	status := c.QueryParam("status")
	if status != "" && !validCaseStatuses[status] {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status: "+status)
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCases(c.Request().Context(), facilityID, status, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var cs Case
	if err := c.Bind(&cs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs.ID = id
	if err := h.svc.UpdateCase(c.Request().Context(), &cs); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cs)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateCaseStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cs, err := h.svc.UpdateCaseStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) DeleteCase(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteCase(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCaseStatuses(c echo.Context) error {
	statuses, err := h.svc.ListCaseStatuses(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, statuses)
}

// -- Milestone Handlers --

func (h *Handler) CreateFacilityMilestone(c echo.Context) error {
	facilityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid facility id")
	}
	var m FacilityMilestone
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.FacilityID = facilityID
	if err := h.svc.CreateFacilityMilestone(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListFacilityMilestones(c echo.Context) error {
	facilityID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid facility id")
	}
	items, err := h.svc.ListFacilityMilestones(c.Request().Context(), facilityID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) UpdateFacilityMilestone(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var m FacilityMilestone
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.ID = id
	if err := h.svc.UpdateFacilityMilestone(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) RecordCaseMilestone(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	var m CaseMilestone
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m.CaseID = caseID
	if err := h.svc.RecordCaseMilestone(c.Request().Context(), &m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListCaseMilestones(c echo.Context) error {
	caseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid case id")
	}
	items, err := h.svc.ListCaseMilestones(c.Request().Context(), caseID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) DeleteCaseMilestone(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteCaseMilestone(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
