package alerts

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/platform/events"
)

// MultiMetric is the metric recorded on correlation alerts.
const MultiMetric = "multi_metric"

// EscalatedSuffix marks a warning promoted to critical by repetition.
const EscalatedSuffix = " (escalated)"

var ErrNotFound = errors.New("alert not found")

// Alert is raised when a rule or correlation matches a measurement.
type Alert struct {
	ID             uuid.UUID      `json:"id"`
	PatientID      string         `json:"patient_id"`
	Metric         string         `json:"metric"`
	Severity       rules.Severity `json:"severity"`
	Trigger        string         `json:"trigger_rule"`
	Timestamp      time.Time      `json:"timestamp"`
	Acknowledged   bool           `json:"acknowledged"`
	ClinicianNote  *string        `json:"clinician_notes,omitempty"`
	AcknowledgedAt *time.Time     `json:"acknowledged_at,omitempty"`
}

// Source classifies how the alert was produced: rule, escalation or correlation.
func (a *Alert) Source() string {
	switch {
	case a.Metric == MultiMetric:
		return "correlation"
	case strings.HasSuffix(a.Trigger, EscalatedSuffix):
		return "escalation"
	default:
		return "rule"
	}
}

// Envelope wraps the alert for the live stream.
func (a *Alert) Envelope() events.Envelope {
	return events.NewAlert(events.AlertPayload{
		ID:           a.ID.String(),
		PatientID:    a.PatientID,
		Severity:     string(a.Severity),
		Metric:       a.Metric,
		Timestamp:    a.Timestamp,
		Acknowledged: a.Acknowledged,
	})
}

// Filter narrows alert queries. Zero values are ignored. Start is inclusive
// and End exclusive.
type Filter struct {
	PatientID    string
	Metric       string
	Severity     rules.Severity
	Acknowledged *bool
	Start        *time.Time
	End          *time.Time
	Limit        int
}

// Reading is one observed value considered by correlation checks.
type Reading struct {
	Metric    string
	Value     float64
	Timestamp time.Time
}
