package analytics

import "github.com/rpm/rpm/internal/domain/patient"

// Trend is the direction of a metric over the window.
type Trend string

const (
	TrendStable        Trend = "stable"
	TrendDeteriorating Trend = "deteriorating"
	TrendCritical      Trend = "critical"
)

// MetricStats summarises one metric's readings in the window.
type MetricStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Summary is computed on demand and never stored.
type Summary struct {
	PatientID    string                 `json:"patient_id"`
	RiskScore    float64                `json:"risk_score"`
	Trend        Trend                  `json:"trend"`
	Metrics      map[string]MetricStats `json:"metrics"`
	AnomalyScore float64                `json:"anomaly_score"`
}

// DefaultBaseRisk applies when the patient or its tier is unknown.
const DefaultBaseRisk = 0.3

// BaseRisk is the starting risk score for a patient's tier.
func BaseRisk(tier patient.RiskTier) float64 {
	switch tier {
	case patient.RiskLow:
		return 0.2
	case patient.RiskMedium:
		return 0.4
	case patient.RiskHigh:
		return 0.6
	default:
		return DefaultBaseRisk
	}
}
