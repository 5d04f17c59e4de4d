package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultCatalogue is seeded when the rule store is empty.
func DefaultCatalogue() []Rule {
	return []Rule{
		{Name: "Tachycardia Warning", Metric: "heart_rate", Operator: OpGreater, Threshold: 110, Severity: SeverityWarning, Enabled: true},
		{Name: "Tachycardia Critical", Metric: "heart_rate", Operator: OpGreater, Threshold: 130, Severity: SeverityCritical, Enabled: true},
		{Name: "Hypoxemia Warning", Metric: "spo2", Operator: OpLess, Threshold: 92, Severity: SeverityWarning, Enabled: true},
		{Name: "Hypoxemia Critical", Metric: "spo2", Operator: OpLess, Threshold: 88, Severity: SeverityCritical, Enabled: true},
		{Name: "Hypertension Warning", Metric: "bp_systolic", Operator: OpGreater, Threshold: 140, Severity: SeverityWarning, Enabled: true},
		{Name: "Hypertension Critical", Metric: "bp_systolic", Operator: OpGreater, Threshold: 160, Severity: SeverityCritical, Enabled: true},
		{Name: "Diastolic Warning", Metric: "bp_diastolic", Operator: OpGreater, Threshold: 90, Severity: SeverityWarning, Enabled: true},
		{Name: "Fever Warning", Metric: "temperature", Operator: OpGreater, Threshold: 37.8, Severity: SeverityWarning, Enabled: true},
		{Name: "Fever Critical", Metric: "temperature", Operator: OpGreater, Threshold: 39.0, Severity: SeverityCritical, Enabled: true},
		{Name: "Tachypnea Warning", Metric: "respiratory_rate", Operator: OpGreater, Threshold: 22, Severity: SeverityWarning, Enabled: true},
		{Name: "Tachypnea Critical", Metric: "respiratory_rate", Operator: OpGreater, Threshold: 28, Severity: SeverityCritical, Enabled: true},
		{Name: "Hyperglycemia Warning", Metric: "blood_glucose", Operator: OpGreater, Threshold: 180, Severity: SeverityWarning, Enabled: true},
		{Name: "Hyperglycemia Critical", Metric: "blood_glucose", Operator: OpGreater, Threshold: 250, Severity: SeverityCritical, Enabled: true},
	}
}

type catalogueFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadCatalogue reads a YAML rule catalogue:
//
//	rules:
//	  - name: Bradycardia Warning
//	    metric: heart_rate
//	    operator: "<"
//	    threshold: 50
//	    severity: warning
//	    enabled: true
func LoadCatalogue(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule catalogue: %w", err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue decodes a YAML rule list and validates every entry.
func ParseCatalogue(data []byte) ([]Rule, error) {
	var f catalogueFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rule catalogue: %w", err)
	}
	seen := make(map[string]bool, len(f.Rules))
	for i := range f.Rules {
		r := &f.Rules[i]
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Name, err)
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("rule %d: %w: %s", i, ErrDuplicateName, r.Name)
		}
		seen[r.Name] = true
	}
	return f.Rules, nil
}
