package audit

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rpm/rpm/internal/platform/auth"
	"github.com/rpm/rpm/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit", h.ListEntries, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) ListEntries(c echo.Context) error {
	f := Filter{PatientID: c.QueryParam("patient_id"), Actor: c.QueryParam("actor")}
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
		items = []Entry{}
	}
	return c.JSON(http.StatusOK, items)
}
