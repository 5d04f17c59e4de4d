package vitals

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/platform/events"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrBatchTooLarge   = errors.New("batch too large")
	ErrInvalidInput    = errors.New("invalid measurement")
)

// Status classifies a stored measurement.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// ParseStatus accepts normal, warning or critical.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusNormal, StatusWarning, StatusCritical:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

func (s Status) rank() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 0
	}
}

// DeriveStatus is warning when value falls outside a known normal range.
// Either bound may be missing.
func DeriveStatus(value float64, low, high *float64) Status {
	if low != nil && value < *low {
		return StatusWarning
	}
	if high != nil && value > *high {
		return StatusWarning
	}
	return StatusNormal
}

// Raise returns the more severe of s and an alert severity.
func (s Status) Raise(sev rules.Severity) Status {
	var alertStatus Status
	switch sev {
	case rules.SeverityCritical:
		alertStatus = StatusCritical
	case rules.SeverityWarning:
		alertStatus = StatusWarning
	default:
		return s
	}
	if alertStatus.rank() > s.rank() {
		return alertStatus
	}
	return s
}

// Measurement is one recorded physiological reading. It is never modified
// after insert.
type Measurement struct {
	ID         int64     `json:"id"`
	PatientID  string    `json:"patient_id"`
	Timestamp  time.Time `json:"timestamp"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	NormalLow  *float64  `json:"normal_low,omitempty"`
	NormalHigh *float64  `json:"normal_high,omitempty"`
	Status     Status    `json:"status"`
	Source     string    `json:"source"`
}

// Envelope wraps the measurement for the live stream.
func (m *Measurement) Envelope() events.Envelope {
	return events.NewVital(events.VitalPayload{
		PatientID: m.PatientID,
		Metric:    m.Metric,
		Value:     m.Value,
		Unit:      m.Unit,
		Timestamp: m.Timestamp,
		Status:    string(m.Status),
	})
}

// Input is one measurement as submitted for ingestion.
type Input struct {
	Timestamp  time.Time `json:"timestamp"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	NormalLow  *float64  `json:"normal_low,omitempty"`
	NormalHigh *float64  `json:"normal_high,omitempty"`
	Status     string    `json:"status,omitempty"`
	Source     string    `json:"source"`
}

// Validate checks one submitted measurement. Any failure rejects the batch.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.Metric) == "" {
		return fmt.Errorf("metric is required")
	}
	if in.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required for %s", in.Metric)
	}
	if in.NormalLow != nil && in.NormalHigh != nil && *in.NormalLow > *in.NormalHigh {
		return fmt.Errorf("normal_low exceeds normal_high for %s", in.Metric)
	}
	if in.Status != "" {
		if _, err := ParseStatus(in.Status); err != nil {
			return err
		}
	}
	return nil
}

// Result is the outcome of one ingest call.
type Result struct {
	Ingested        int `json:"ingested"`
	AlertsGenerated int `json:"alerts_generated"`
}

// Query selects stored measurements. Start and End are inclusive.
type Query struct {
	PatientID string
	Metric    string
	Start     *time.Time
	End       *time.Time
	Limit     int
}
