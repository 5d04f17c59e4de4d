package vitals

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/domain/alerts"
	"github.com/rpm/rpm/internal/platform/db"
	"github.com/rpm/rpm/internal/platform/events"
	"github.com/rpm/rpm/internal/platform/metrics"
	"github.com/rpm/rpm/pkg/pagination"
)

const (
	DefaultQueryLimit = 200
	MaxQueryLimit     = 1000
	MaxBatchSize      = 1000
)

// AlertWriter persists generated alerts.
type AlertWriter interface {
	Insert(ctx context.Context, a *alerts.Alert) error
}

// Service ingests measurement batches. Each measurement is evaluated, stored
// together with its alerts in one transaction, and only then broadcast, so the
// next measurement's escalation check sees every earlier alert and observers
// never receive data that was not persisted.
type Service struct {
	tx          db.TxRunner
	repo        Repository
	alerts      AlertWriter
	patients    PatientChecker
	evaluator   *alerts.Evaluator
	correlation *alerts.CorrelationDetector
	sink        events.Sink
	logger      zerolog.Logger
	locks       *keyedMutex
}

// NewService wires the ingest pipeline.
func NewService(
	tx db.TxRunner,
	repo Repository,
	alertRepo AlertWriter,
	patients PatientChecker,
	evaluator *alerts.Evaluator,
	correlation *alerts.CorrelationDetector,
	sink events.Sink,
	logger zerolog.Logger,
) *Service {
	if sink == nil {
		sink = events.Discard
	}
	return &Service{
		tx:          tx,
		repo:        repo,
		alerts:      alertRepo,
		patients:    patients,
		evaluator:   evaluator,
		correlation: correlation,
		sink:        sink,
		logger:      logger.With().Str("component", "ingest").Logger(),
		locks:       newKeyedMutex(),
	}
}

// Ingest processes batch in order for one patient. Concurrent batches for the
// same patient are serialized; different patients proceed in parallel. When a
// measurement fails, earlier measurements stay committed and the returned
// Result counts only what was stored.
func (s *Service) Ingest(ctx context.Context, patientID string, batch []Input) (Result, error) {
	var res Result
	if len(batch) > MaxBatchSize {
		return res, fmt.Errorf("%w: %d measurements (max %d)", ErrBatchTooLarge, len(batch), MaxBatchSize)
	}
	for i := range batch {
		if err := batch[i].Validate(); err != nil {
			return res, fmt.Errorf("%w %d: %v", ErrInvalidInput, i, err)
		}
	}

	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return res, fmt.Errorf("lookup patient: %w", err)
	}
	if !ok {
		return res, ErrPatientNotFound
	}

	start := time.Now()
	unlock := s.locks.Lock(patientID)
	defer unlock()

	for i := range batch {
		m, fired, err := s.ingestOne(ctx, patientID, batch[i])
		if err != nil {
			s.logger.Error().Err(err).Str("patient_id", patientID).Int("index", i).Msg("ingest aborted")
			return res, fmt.Errorf("measurement %d (%s): %w", i, batch[i].Metric, err)
		}
		res.Ingested++
		res.AlertsGenerated += len(fired)

		metrics.MeasurementsIngested.WithLabelValues(m.Metric, string(m.Status)).Inc()
		s.sink.Broadcast(ctx, m.Envelope())
		for j := range fired {
			metrics.AlertsGenerated.WithLabelValues(string(fired[j].Severity), fired[j].Source()).Inc()
			s.sink.Broadcast(ctx, fired[j].Envelope())
		}
	}

	metrics.IngestBatchSize.Observe(float64(len(batch)))
	metrics.IngestDuration.Observe(time.Since(start).Seconds())
	s.logger.Debug().
		Str("patient_id", patientID).
		Int("ingested", res.Ingested).
		Int("alerts", res.AlertsGenerated).
		Msg("batch ingested")
	return res, nil
}

func (s *Service) ingestOne(ctx context.Context, patientID string, in Input) (*Measurement, []alerts.Alert, error) {
	m := &Measurement{
		PatientID:  patientID,
		Timestamp:  in.Timestamp.UTC(),
		Metric:     in.Metric,
		Value:      in.Value,
		Unit:       in.Unit,
		NormalLow:  in.NormalLow,
		NormalHigh: in.NormalHigh,
		Source:     in.Source,
	}
	if in.Status != "" {
		m.Status = Status(in.Status)
	} else {
		m.Status = DeriveStatus(in.Value, in.NormalLow, in.NormalHigh)
	}

	var fired []alerts.Alert
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		fired, err = s.evaluator.Evaluate(ctx, patientID, m.Metric, m.Value, m.Timestamp)
		if err != nil {
			return err
		}
		corr, err := s.correlation.Evaluate(ctx, patientID, m.Timestamp,
			alerts.Reading{Metric: m.Metric, Value: m.Value, Timestamp: m.Timestamp})
		if err != nil {
			return err
		}
		if corr != nil {
			fired = append(fired, *corr)
		}

		for _, a := range fired {
			m.Status = m.Status.Raise(a.Severity)
		}
		if err := s.repo.Insert(ctx, m); err != nil {
			return err
		}
		for i := range fired {
			if err := s.alerts.Insert(ctx, &fired[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return m, fired, nil
}

// Query returns a patient's stored measurements, newest first.
func (s *Service) Query(ctx context.Context, q Query) ([]Measurement, error) {
	q.Limit = pagination.Clamp(q.Limit, DefaultQueryLimit, MaxQueryLimit)
	return s.repo.Query(ctx, q)
}
