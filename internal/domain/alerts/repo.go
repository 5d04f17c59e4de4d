package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rpm/rpm/internal/domain/rules"
)

// Repository persists alerts.
type Repository interface {
	Insert(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	Query(ctx context.Context, f Filter) ([]Alert, error)
	// CountAlerts counts alerts with timestamp in [start, end).
	CountAlerts(ctx context.Context, patientID, metric string, severity rules.Severity, start, end time.Time) (int, error)
	Acknowledge(ctx context.Context, id uuid.UUID, note *string, at time.Time) (*Alert, error)
}

// ReadingSource returns a patient's measurements with timestamp in
// [start, end], oldest first, ties in insertion order.
type ReadingSource interface {
	ReadingsBetween(ctx context.Context, patientID string, start, end time.Time) ([]Reading, error)
}
