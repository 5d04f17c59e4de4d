package patient

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound  = errors.New("patient not found")
	ErrDuplicate = errors.New("patient already exists")
)

// RiskTier is the clinical risk profile assigned at enrolment.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Valid reports whether r is low, medium or high.
func (r RiskTier) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

const (
	StatusActive     = "active"
	StatusPaused     = "paused"
	StatusDischarged = "discharged"
)

func validMonitoringStatus(s string) bool {
	switch s {
	case StatusActive, StatusPaused, StatusDischarged:
		return true
	}
	return false
}

// MetricBaseline is a patient's expected value for one metric.
type MetricBaseline struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
}

// BaselineProfile maps metric name to its baseline.
type BaselineProfile map[string]MetricBaseline

// Patient is an enrolled monitoring subject.
type Patient struct {
	ID                string          `json:"id" yaml:"id"`
	Name              string          `json:"name" yaml:"name"`
	Age               int             `json:"age" yaml:"age"`
	Sex               string          `json:"sex" yaml:"sex"`
	HeightCM          float64         `json:"height_cm" yaml:"height_cm"`
	WeightKG          float64         `json:"weight_kg" yaml:"weight_kg"`
	Diagnoses         []string        `json:"diagnoses" yaml:"diagnoses"`
	RiskProfile       RiskTier        `json:"risk_profile" yaml:"risk_profile"`
	AssignedClinician *string         `json:"assigned_clinician" yaml:"assigned_clinician"`
	MonitoringStatus  string          `json:"monitoring_status" yaml:"monitoring_status"`
	BaselineProfile   BaselineProfile `json:"baseline_profile" yaml:"baseline_profile"`
	CreatedAt         time.Time       `json:"created_at" yaml:"-"`
}

// Normalize fills defaults for optional fields.
func (p *Patient) Normalize() {
	p.ID = strings.TrimSpace(p.ID)
	if p.MonitoringStatus == "" {
		p.MonitoringStatus = StatusActive
	}
	if p.Diagnoses == nil {
		p.Diagnoses = []string{}
	}
	if p.BaselineProfile == nil {
		p.BaselineProfile = BaselineProfile{}
	}
}

// Validate checks the fields required on create.
func (p *Patient) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if p.Age < 0 || p.Age > 150 {
		return fmt.Errorf("age out of range: %d", p.Age)
	}
	if !p.RiskProfile.Valid() {
		return fmt.Errorf("invalid risk_profile %q", p.RiskProfile)
	}
	if !validMonitoringStatus(p.MonitoringStatus) {
		return fmt.Errorf("invalid monitoring_status %q", p.MonitoringStatus)
	}
	for metric, b := range p.BaselineProfile {
		if b.Std < 0 {
			return fmt.Errorf("baseline %s: std must not be negative", metric)
		}
	}
	return nil
}

// Update is a partial change; nil fields are left alone.
type Update struct {
	MonitoringStatus  *string          `json:"monitoring_status"`
	AssignedClinician *string          `json:"assigned_clinician"`
	RiskProfile       *RiskTier        `json:"risk_profile"`
	BaselineProfile   *BaselineProfile `json:"baseline_profile"`
}

// Apply copies the fields set in u onto p.
func (u Update) Apply(p *Patient) {
	if u.MonitoringStatus != nil {
		p.MonitoringStatus = *u.MonitoringStatus
	}
	if u.AssignedClinician != nil {
		p.AssignedClinician = u.AssignedClinician
	}
	if u.RiskProfile != nil {
		p.RiskProfile = *u.RiskProfile
	}
	if u.BaselineProfile != nil {
		p.BaselineProfile = *u.BaselineProfile
	}
}

type Filter struct {
	MonitoringStatus  string
	RiskProfile       string
	AssignedClinician string
}
