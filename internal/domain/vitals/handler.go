package vitals

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rpm/rpm/internal/platform/fhir"
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
	api.POST("/vitals/ingest", h.Ingest)
	api.GET("/vitals/:patient_id", h.ListVitals)
	api.GET("/vitals/:patient_id/fhir", h.ListVitalsFHIR)
}

type ingestRequest struct {
	PatientID    string  `json:"patient_id"`
	Measurements []Input `json:"measurements"`
}

func (h *Handler) Ingest(c echo.Context) error {
	middleware.SetAuditAction(c, "vitals.ingest")
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PatientID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_id is required")
	}
	middleware.SetAuditPatient(c, req.PatientID)

	res, err := h.svc.Ingest(c.Request().Context(), req.PatientID, req.Measurements)
	switch {
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Patient not found")
	case errors.Is(err, ErrBatchTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListVitals(c echo.Context) error {
	middleware.SetAuditAction(c, "vitals.get")
	items, err := h.query(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

// ListVitalsFHIR returns the same selection as ListVitals wrapped in a
// searchset Bundle of Observations.
func (h *Handler) ListVitalsFHIR(c echo.Context) error {
	middleware.SetAuditAction(c, "vitals.get_fhir")
	items, err := h.query(c)
	if err != nil {
		return err
	}
	resources := make([]map[string]interface{}, len(items))
	for i := range items {
		resources[i] = items[i].ToFHIR()
	}
	bundle, err := fhir.NewSearchBundle(resources, c.Request().URL.String())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, bundle)
}

func (h *Handler) query(c echo.Context) ([]Measurement, error) {
	q := Query{PatientID: c.Param("patient_id"), Metric: c.QueryParam("metric")}

	var err error
	if q.Start, err = parseTime(c.QueryParam("start")); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid start")
	}
	if q.End, err = parseTime(c.QueryParam("end")); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid end")
	}
	if q.Limit, err = pagination.LimitParam(c); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	items, err := h.svc.Query(c.Request().Context(), q)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []Measurement{}
	}
	return items, nil
}

func parseTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
