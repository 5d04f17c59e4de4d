package alerts

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/platform/auth"
	"github.com/rpm/rpm/internal/platform/middleware"
	"github.com/rpm/rpm/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/alerts", h.ListAlerts)

	ack := api.Group("", auth.RequireRole(auth.RoleClinician))
	ack.POST("/alerts/:id/acknowledge", h.Acknowledge)
}

func (h *Handler) ListAlerts(c echo.Context) error {
	middleware.SetAuditAction(c, "alerts.list")
	f := Filter{PatientID: c.QueryParam("patient_id")}
	if v := c.QueryParam("severity"); v != "" {
		sev, err := rules.ParseSeverity(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		f.Severity = sev
	}
	if v := c.QueryParam("acknowledged"); v != "" {
		ack, err := strconv.ParseBool(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid acknowledged")
		}
		f.Acknowledged = &ack
	}
	limit, err := pagination.LimitParam(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f.Limit = limit

	items, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []Alert{}
	}
	return c.JSON(http.StatusOK, items)
}

type ackRequest struct {
	ClinicianNote string `json:"clinician_note"`
}

func (h *Handler) Acknowledge(c echo.Context) error {
	middleware.SetAuditAction(c, "alerts.acknowledge")
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	a, err := h.svc.Acknowledge(c.Request().Context(), id, req.ClinicianNote)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Alert not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	middleware.SetAuditPatient(c, a.PatientID)
	return c.JSON(http.StatusOK, a)
}
