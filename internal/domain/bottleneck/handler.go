package bottleneck

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
	readGroup.GET("/analytics/bottlenecks", h.GetBottlenecks)
}

func (h *Handler) GetBottlenecks(c echo.Context) error {
	f, err := facts.FilterFromValues(c.QueryParams())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	flags, err := h.svc.Detect(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to detect bottlenecks")
	}
	return c.JSON(http.StatusOK, flags)
}
