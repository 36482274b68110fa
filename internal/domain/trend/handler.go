package trend

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulseboard/pulseboard/internal/domain/facts"
	"github.com/pulseboard/pulseboard/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "analyst", "manager"))
	readGroup.GET("/analytics/trends", h.GetTrends)
	readGroup.GET("/analytics/departments", h.GetDepartmentComparison)
	readGroup.GET("/analytics/branches", h.GetBranchComparison)
	readGroup.GET("/analytics/peak-hours", h.GetPeakHours)
}

func (h *Handler) GetTrends(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	g, err := ParseGranularity(c.QueryParam("granularity"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	points, err := h.svc.Trends(c.Request().Context(), g, f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute trends")
	}
	return c.JSON(http.StatusOK, points)
}

func (h *Handler) GetDepartmentComparison(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rows, err := h.svc.DepartmentComparison(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute department comparison")
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) GetBranchComparison(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rows, err := h.svc.BranchComparison(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute branch comparison")
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) GetPeakHours(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	byDOW := c.QueryParam("by_day_of_week") == "true"
	rows, err := h.svc.PeakHours(c.Request().Context(), f, byDOW)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute peak hours")
	}
	return c.JSON(http.StatusOK, rows)
}
