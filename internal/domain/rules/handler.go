package rules

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rpm/rpm/internal/platform/auth"
	"github.com/rpm/rpm/internal/platform/middleware"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RoleClinician))
	read.GET("/rules", h.ListRules)

	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/rules", h.CreateRule)
	write.PATCH("/rules/:id", h.UpdateRule)
}

func (h *Handler) ListRules(c echo.Context) error {
	middleware.SetAuditAction(c, "rules.list")
	items, err := h.store.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []Rule{}
	}
	return c.JSON(http.StatusOK, items)
}

type createRequest struct {
	Name      string  `json:"name"`
	Metric    string  `json:"metric"`
	Operator  string  `json:"operator"`
	Threshold float64 `json:"threshold"`
	Severity  string  `json:"severity"`
	Enabled   *bool   `json:"enabled"`
}

func (h *Handler) CreateRule(c echo.Context) error {
	middleware.SetAuditAction(c, "rules.create")
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	op, err := ParseOperator(req.Operator)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sev, err := ParseSeverity(req.Severity)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r := &Rule{
		Name:      req.Name,
		Metric:    req.Metric,
		Operator:  op,
		Threshold: req.Threshold,
		Severity:  sev,
		Enabled:   req.Enabled == nil || *req.Enabled,
	}
	if err := h.store.Create(c.Request().Context(), r); err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) UpdateRule(c echo.Context) error {
	middleware.SetAuditAction(c, "rules.update")
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var p Patch
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.store.Update(c.Request().Context(), id, p)
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "rule not found")
	case err != nil:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, r)
}
