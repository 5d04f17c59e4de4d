package rules

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("rule not found")
	ErrDuplicateName   = errors.New("rule name already exists")
	ErrInvalidOperator = errors.New("invalid operator")
	ErrInvalidSeverity = errors.New("invalid severity")
)

// Operator is the closed set of threshold comparisons.
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// ParseOperator accepts one of >, <, >=, <= after trimming whitespace.
func ParseOperator(s string) (Operator, error) {
	op := Operator(strings.TrimSpace(s))
	if !op.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidOperator, s)
	}
	return op, nil
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return true
	}
	return false
}

// Compare applies the operator as value <op> threshold. An operator outside
// the enum never matches.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OpGreater:
		return value > threshold
	case OpLess:
		return value < threshold
	case OpGreaterEqual:
		return value >= threshold
	case OpLessEqual:
		return value <= threshold
	default:
		return false
	}
}

// Severity is the level an alert is raised at.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity accepts warning or critical.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.TrimSpace(s))
	if !sev.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
	}
	return sev, nil
}

// Valid reports whether s is warning or critical.
func (s Severity) Valid() bool {
	return s == SeverityWarning || s == SeverityCritical
}

// Rank orders severities so callers can take the maximum; unknown ranks 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// Rule is a threshold check on one metric. Rule names are unique.
type Rule struct {
	ID        int       `json:"id" yaml:"-"`
	Name      string    `json:"name" yaml:"name"`
	Metric    string    `json:"metric" yaml:"metric"`
	Operator  Operator  `json:"operator" yaml:"operator"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
	Severity  Severity  `json:"severity" yaml:"severity"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
}

// Validate checks the fields required before a rule is stored.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(r.Metric) == "" {
		return fmt.Errorf("metric is required")
	}
	if !r.Operator.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidOperator, r.Operator)
	}
	if !r.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, r.Severity)
	}
	return nil
}

// Matches reports whether an enabled rule fires for value.
func (r Rule) Matches(value float64) bool {
	return r.Enabled && r.Operator.Compare(value, r.Threshold)
}

// Patch is a partial update from the admin API.
type Patch struct {
	Enabled   *bool    `json:"enabled"`
	Threshold *float64 `json:"threshold"`
	Severity  *string  `json:"severity"`
}
