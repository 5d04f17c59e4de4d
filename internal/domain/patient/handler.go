package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rpm/rpm/internal/platform/auth"
	"github.com/rpm/rpm/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:id", h.GetPatient)

	api.POST("/patients", h.CreatePatient, auth.RequireRole(auth.RoleAdmin))
	api.PATCH("/patients/:id", h.UpdatePatient, auth.RequireRole(auth.RoleClinician))
}

func (h *Handler) ListPatients(c echo.Context) error {
	middleware.SetAuditAction(c, "patient.list")
	items, err := h.svc.List(c.Request().Context(), Filter{
		MonitoringStatus:  c.QueryParam("status"),
		RiskProfile:       c.QueryParam("risk_profile"),
		AssignedClinician: c.QueryParam("assigned_clinician"),
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []*Patient{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	middleware.SetAuditAction(c, "patient.create")
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	middleware.SetAuditPatient(c, p.ID)
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "Patient already exists")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	middleware.SetAuditAction(c, "patient.get")
	p, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	middleware.SetAuditAction(c, "patient.update")
	var u Update
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.Update(c.Request().Context(), c.Param("id"), u)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
