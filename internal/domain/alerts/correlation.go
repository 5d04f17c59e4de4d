package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rpm/rpm/internal/domain/rules"
)

const DefaultCorrelationWindow = 10 * time.Minute

// Predicate is a named compound condition over the latest value of each
// metric. Metrics without a reading in the window are absent from latest.
type Predicate struct {
	Name     string
	Severity rules.Severity
	Match    func(latest map[string]float64) bool
}

func valueOr(latest map[string]float64, metric string, def float64) float64 {
	if v, ok := latest[metric]; ok {
		return v
	}
	return def
}

// DefaultPredicates holds the built-in correlations.
func DefaultPredicates() []Predicate {
	return []Predicate{
		{
			Name:     "Tachycardia + Hypoxemia Correlation",
			Severity: rules.SeverityCritical,
			Match: func(latest map[string]float64) bool {
				return valueOr(latest, "heart_rate", 0) > 120 && valueOr(latest, "spo2", 100) < 90
			},
		},
	}
}

// CorrelationDetector looks for compound conditions in the trailing window of
// a patient's measurements.
type CorrelationDetector struct {
	readings   ReadingSource
	window     time.Duration
	predicates []Predicate
	newID      func() uuid.UUID
}

// NewCorrelationDetector uses the default predicates when none are given.
func NewCorrelationDetector(readings ReadingSource, predicates ...Predicate) *CorrelationDetector {
	if len(predicates) == 0 {
		predicates = DefaultPredicates()
	}
	return &CorrelationDetector{
		readings:   readings,
		window:     DefaultCorrelationWindow,
		predicates: predicates,
		newID:      uuid.New,
	}
}

// Evaluate checks [ts-window, ts] and returns at most one alert: the first
// predicate that holds. pending are readings not yet stored, such as the
// measurement being ingested; on equal timestamps they win over stored ones.
func (d *CorrelationDetector) Evaluate(ctx context.Context, patientID string, ts time.Time, pending ...Reading) (*Alert, error) {
	start := ts.Add(-d.window)
	stored, err := d.readings.ReadingsBetween(ctx, patientID, start, ts)
	if err != nil {
		return nil, fmt.Errorf("load correlation window: %w", err)
	}

	latest := latestByMetric(append(stored, pending...), start, ts)
	for _, p := range d.predicates {
		if p.Match(latest) {
			return &Alert{
				ID:        d.newID(),
				PatientID: patientID,
				Metric:    MultiMetric,
				Severity:  p.Severity,
				Trigger:   p.Name,
				Timestamp: ts,
			}, nil
		}
	}
	return nil, nil
}

// latestByMetric keeps, per metric, the reading with the greatest timestamp
// inside [start, end]. Among equal timestamps the later element of rs wins.
func latestByMetric(rs []Reading, start, end time.Time) map[string]float64 {
	in := make([]Reading, 0, len(rs))
	for _, r := range rs {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		in = append(in, r)
	}
	sort.SliceStable(in, func(i, j int) bool { return in[i].Timestamp.Before(in[j].Timestamp) })

	latest := make(map[string]float64, len(in))
	for _, r := range in {
		latest[r.Metric] = r.Value
	}
	return latest
}
