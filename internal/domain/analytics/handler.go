package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rpm/rpm/internal/platform/middleware"
)

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/analytics/summary", h.GetSummary)
}

func (h *Handler) GetSummary(c echo.Context) error {
	middleware.SetAuditAction(c, "analytics.summary")
	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	s, err := h.agg.Summarize(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}
