package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/platform/events"
	"github.com/rpm/rpm/internal/platform/metrics"
	"github.com/rpm/rpm/pkg/pagination"
)

// DefaultListLimit caps alert listings when no limit is given.
const DefaultListLimit = 500

// Service lists and acknowledges stored alerts. Acknowledgments are
// broadcast so dashboards can clear them.
type Service struct {
	repo   Repository
	sink   events.Sink
	logger zerolog.Logger
	now    func() time.Time
}

// NewService returns a Service. A nil sink discards broadcasts.
func NewService(repo Repository, sink events.Sink, logger zerolog.Logger) *Service {
	if sink == nil {
		sink = events.Discard
	}
	return &Service{repo: repo, sink: sink, logger: logger, now: time.Now}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Alert, error) {
	f.Limit = pagination.Clamp(f.Limit, DefaultListLimit, 0)
	return s.repo.Query(ctx, f)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return s.repo.GetByID(ctx, id)
}

// Acknowledge marks the alert handled and re-broadcasts it so observers can
// clear it. Acknowledging twice overwrites the note and time.
func (s *Service) Acknowledge(ctx context.Context, id uuid.UUID, note string) (*Alert, error) {
	var notePtr *string
	if note != "" {
		notePtr = &note
	}
	a, err := s.repo.Acknowledge(ctx, id, notePtr, s.now().UTC())
	if err != nil {
		return nil, err
	}
	metrics.AlertsAcknowledged.Inc()
	s.logger.Info().Str("alert_id", a.ID.String()).Str("patient_id", a.PatientID).Msg("alert acknowledged")
	s.sink.Broadcast(ctx, a.Envelope())
	return a, nil
}
