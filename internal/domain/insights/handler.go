package insights

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Handler exposes the insight engine over HTTP.
type Handler struct {
	defaults Config
}

func NewHandler(defaults Config) *Handler {
	return &Handler{defaults: defaults}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/analytics/insights", h.Generate)
	g.GET("/analytics/insights/defaults", h.Defaults)
}

type GenerateRequest struct {
	Overview *Overview `json:"overview"`
	Config   *Config   `json:"config,omitempty"`
}

type GenerateResponse struct {
	Data        []Insight `json:"data"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generate handles POST /analytics/insights. Per-request config overlays the
// server defaults field by field; zero-valued fields keep the default.
func (h *Handler) Generate(c echo.Context) error {
	var req GenerateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Overview == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "overview is required")
	}

	cfg := h.defaults
	if req.Config != nil {
		cfg = Merge(h.defaults, *req.Config)
	}

	data := Generate(req.Overview, cfg)
	if data == nil {
		data = []Insight{}
	}

	return c.JSON(http.StatusOK, GenerateResponse{
		Data:        data,
		GeneratedAt: time.Now().UTC(),
	})
}

// Defaults handles GET /analytics/insights/defaults.
func (h *Handler) Defaults(c echo.Context) error {
	return c.JSON(http.StatusOK, h.defaults.Resolve())
}
