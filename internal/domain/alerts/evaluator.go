package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpm/rpm/internal/domain/rules"
)

const (
	DefaultEscalationWindow = 30 * time.Minute
	DefaultEscalationCount  = 2
)

// RuleSource yields the enabled rules for one metric in rule order.
type RuleSource interface {
	RulesFor(ctx context.Context, metric string) ([]rules.Rule, error)
}

// AlertCounter counts stored alerts with timestamp in [start, end).
type AlertCounter interface {
	CountAlerts(ctx context.Context, patientID, metric string, severity rules.Severity, start, end time.Time) (int, error)
}

// Evaluator applies threshold rules to a single measurement. A warning is
// promoted to critical when the patient already has DefaultEscalationCount
// warnings for the metric inside the escalation window.
type Evaluator struct {
	rules  RuleSource
	counts AlertCounter
	window time.Duration
	limit  int
	newID  func() uuid.UUID
}

// NewEvaluator returns an evaluator reading rules from rs and prior alert
// counts from counts.
func NewEvaluator(rs RuleSource, counts AlertCounter) *Evaluator {
	return &Evaluator{
		rules:  rs,
		counts: counts,
		window: DefaultEscalationWindow,
		limit:  DefaultEscalationCount,
		newID:  uuid.New,
	}
}

// Evaluate returns one unacknowledged alert per matching rule. Nothing is
// written; the caller persists the result.
func (e *Evaluator) Evaluate(ctx context.Context, patientID, metric string, value float64, ts time.Time) ([]Alert, error) {
	candidates, err := e.rules.RulesFor(ctx, metric)
	if err != nil {
		return nil, fmt.Errorf("load rules for %s: %w", metric, err)
	}

	var (
		out       []Alert
		escalate  bool
		countDone bool
	)
	for _, r := range candidates {
		if !r.Matches(value) {
			continue
		}
		a := Alert{
			ID:        e.newID(),
			PatientID: patientID,
			Metric:    metric,
			Severity:  r.Severity,
			Trigger:   r.Name,
			Timestamp: ts,
		}
		if r.Severity == rules.SeverityWarning {
			if !countDone {
				n, err := e.counts.CountAlerts(ctx, patientID, metric, rules.SeverityWarning, ts.Add(-e.window), ts)
				if err != nil {
					return nil, fmt.Errorf("count recent warnings: %w", err)
				}
				escalate = n >= e.limit
				countDone = true
			}
			if escalate {
				a.Severity = rules.SeverityCritical
				a.Trigger += EscalatedSuffix
			}
		}
		out = append(out, a)
	}
	return out, nil
}
