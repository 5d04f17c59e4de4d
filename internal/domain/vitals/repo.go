package vitals

import (
	"context"
	"time"

	"github.com/rpm/rpm/internal/domain/alerts"
)

// Repository persists measurements.
type Repository interface {
	Insert(ctx context.Context, m *Measurement) error
	// Query returns measurements newest first.
	Query(ctx context.Context, q Query) ([]Measurement, error)
	alerts.ReadingSource
}

// PatientChecker reports whether a monitored patient exists.
type PatientChecker interface {
	Exists(ctx context.Context, patientID string) (bool, error)
}

// ReadingsOf converts stored measurements into correlation readings.
func ReadingsOf(ms []Measurement) []alerts.Reading {
	out := make([]alerts.Reading, len(ms))
	for i, m := range ms {
		out[i] = alerts.Reading{Metric: m.Metric, Value: m.Value, Timestamp: m.Timestamp}
	}
	return out
}

func windowQuery(patientID string, start, end time.Time) Query {
	return Query{PatientID: patientID, Start: &start, End: &end}
}
