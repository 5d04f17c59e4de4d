package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rpm/rpm/internal/domain/alerts"
	"github.com/rpm/rpm/internal/domain/patient"
	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/domain/vitals"
	"github.com/rpm/rpm/internal/platform/metrics"
)

const (
	DefaultWindow  = 24 * time.Hour
	DefaultTimeout = 10 * time.Second
)

type MeasurementReader interface {
	Query(ctx context.Context, q vitals.Query) ([]vitals.Measurement, error)
}

type AlertReader interface {
	Query(ctx context.Context, f alerts.Filter) ([]alerts.Alert, error)
}

type PatientReader interface {
	GetByID(ctx context.Context, id string) (*patient.Patient, error)
}

// Aggregator summarizes a patient's trailing window. It only reads.
type Aggregator struct {
	vitals   MeasurementReader
	alerts   AlertReader
	patients PatientReader
	window   time.Duration
	timeout  time.Duration
	now      func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithTimeout bounds one summary computation.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClock overrides the time source that anchors the window.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator returns an aggregator over the given readers.
func NewAggregator(v MeasurementReader, al AlertReader, p PatientReader, opts ...Option) *Aggregator {
	a := &Aggregator{
		vitals:   v,
		alerts:   al,
		patients: p,
		window:   DefaultWindow,
		timeout:  DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Summarize reads measurements, alerts and the patient in parallel. A patient
// with no history or no record still gets a summary; only storage failures
// and cancellation are errors.
func (a *Aggregator) Summarize(ctx context.Context, patientID string) (*Summary, error) {
	start := time.Now()
	defer func() { metrics.AnalyticsDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	since := a.now().Add(-a.window)
	var (
		ms   []vitals.Measurement
		as   []alerts.Alert
		base = DefaultBaseRisk
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ms, err = a.vitals.Query(gctx, vitals.Query{PatientID: patientID, Start: &since})
		if err != nil {
			return fmt.Errorf("load measurements: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		as, err = a.alerts.Query(gctx, alerts.Filter{PatientID: patientID, Start: &since})
		if err != nil {
			return fmt.Errorf("load alerts: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		p, err := a.patients.GetByID(gctx, patientID)
		switch {
		case errors.Is(err, patient.ErrNotFound):
			return nil
		case err != nil:
			return fmt.Errorf("load patient: %w", err)
		}
		base = BaseRisk(p.RiskProfile)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summarize(patientID, base, ms, as), nil
}

func summarize(patientID string, base float64, ms []vitals.Measurement, as []alerts.Alert) *Summary {
	// oldest first so the last element is the latest reading
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Timestamp.Before(ms[j].Timestamp) })
	series := make(map[string][]float64)
	for _, m := range ms {
		series[m.Metric] = append(series[m.Metric], m.Value)
	}

	s := &Summary{
		PatientID: patientID,
		Metrics:   make(map[string]MetricStats, len(series)),
	}
	for metric, values := range series {
		s.Metrics[metric] = Stats(values)
		s.AnomalyScore = math.Max(s.AnomalyScore, AnomalyScore(values))
	}

	var critical, warning int
	for _, al := range as {
		switch al.Severity {
		case rules.SeverityCritical:
			critical++
		case rules.SeverityWarning:
			warning++
		}
	}
	s.RiskScore = RiskScore(base, critical, warning)
	s.Trend = TrendOf(len(as), critical)
	return s
}
