package forecast

import (
	"fmt"
	"net/http"
	"strconv"

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
	readGroup.GET("/analytics/admissions/moving-average", h.GetAdmissionMovingAverage)
	readGroup.GET("/analytics/occupancy/forecast", h.GetOccupancyForecast)
	readGroup.GET("/alerts/thresholds", h.GetThresholdAlerts)
	readGroup.GET("/alerts/resources", h.GetResourceAlerts)
}

func (h *Handler) GetAdmissionMovingAverage(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	days, err := intParam(c, "days")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	window, err := intParam(c, "window_days")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	points, err := h.svc.AdmissionMovingAverage(c.Request().Context(), f.BranchIDs, days, window)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute admission series")
	}
	return c.JSON(http.StatusOK, points)
}

func (h *Handler) GetOccupancyForecast(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	lookback, err := intParam(c, "lookback_days")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	threshold, err := floatParam(c, "threshold")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	series, err := h.svc.OccupancyForecast(c.Request().Context(), f.BranchIDs, lookback, threshold)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute occupancy forecast")
	}
	return c.JSON(http.StatusOK, series)
}

func (h *Handler) GetThresholdAlerts(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var th Thresholds
	if th.BedOccupancyPct, err = floatParam(c, "bed_threshold"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if th.ICUOccupancyPct, err = floatParam(c, "icu_threshold"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if th.DoctorUtilizationPct, err = floatParam(c, "doctor_threshold"); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	alerts, err := h.svc.ThresholdAlerts(c.Request().Context(), f, th)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute threshold alerts")
	}
	return c.JSON(http.StatusOK, alerts)
}

func (h *Handler) GetResourceAlerts(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	daysAhead, err := intParam(c, "days_ahead")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	occTh, err := floatParam(c, "occupancy_threshold")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	utilTh, err := floatParam(c, "utilization_threshold")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	alerts, err := h.svc.ResourceAlerts(c.Request().Context(), f.BranchIDs, daysAhead, occTh, utilTh)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute resource alerts")
	}
	return c.JSON(http.StatusOK, alerts)
}

func intParam(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}

func floatParam(c echo.Context, name string) (float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}
