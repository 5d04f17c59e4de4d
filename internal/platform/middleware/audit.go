package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/platform/auth"
)

const (
	auditActionKey  = "audit_action"
	auditPatientKey = "audit_patient_id"
)

// AuditEntry records who did what to which patient's data.
type AuditEntry struct {
	Actor      string
	Role       string
	Action     string
	PatientID  string
	Method     string
	Path       string
	StatusCode int
	RequestID  string
	RemoteIP   string
	Timestamp  time.Time
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// AuditRecorderFunc adapts a function to AuditRecorder.
type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// SetAuditAction overrides the derived action name, e.g. "vitals.ingest".
func SetAuditAction(c echo.Context, action string) {
	c.Set(auditActionKey, action)
}

// SetAuditPatient attaches the patient a request touched when it is not in the URL.
func SetAuditPatient(c echo.Context, patientID string) {
	c.Set(auditPatientKey, patientID)
}

// Audit records every authenticated /api/v1/ request after the handler runs.
// Recorder failures are logged and never fail the request.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			entry := AuditEntry{
				Actor:      auth.UserIDFromContext(ctx),
				Role:       auth.RoleFromContext(ctx),
				Method:     req.Method,
				Path:       req.URL.Path,
				StatusCode: statusOf(c, err),
				RemoteIP:   c.RealIP(),
				Timestamp:  time.Now().UTC(),
			}
			if entry.Actor == "" {
				return err
			}
			entry.RequestID, _ = c.Get(requestIDKey).(string)
			entry.Action = actionOf(c)
			entry.PatientID = patientOf(c)

			if recorder != nil {
				// the request context may already be cancelled
				if recErr := recorder.RecordAccess(context.WithoutCancel(ctx), entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("actor", entry.Actor).
				Str("role", entry.Role).
				Str("action", entry.Action).
				Str("patient_id", entry.PatientID).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Int("status", entry.StatusCode).
				Msg("audit")

			return err
		}
	}
}

func statusOf(c echo.Context, err error) int {
	if err == nil {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func actionOf(c echo.Context) string {
	if a, ok := c.Get(auditActionKey).(string); ok && a != "" {
		return a
	}
	resource := "unknown"
	segments := strings.Split(strings.TrimPrefix(c.Request().URL.Path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		resource = segments[0]
	}
	return resource + "." + methodVerb(c.Request().Method, len(segments) > 1)
}

func methodVerb(method string, hasID bool) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		if hasID {
			return "get"
		}
		return "list"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

func patientOf(c echo.Context) string {
	if p, ok := c.Get(auditPatientKey).(string); ok && p != "" {
		return p
	}
	if p := c.Param("patient_id"); p != "" {
		return p
	}
	if p := c.QueryParam("patient_id"); p != "" {
		return p
	}
	if strings.HasPrefix(c.Request().URL.Path, "/api/v1/patients/") {
		return c.Param("id")
	}
	return ""
}
