package simulator

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rpm/rpm/internal/domain/patient"
	"github.com/rpm/rpm/internal/domain/vitals"
)

// Ingester accepts one patient's batch.
type Ingester interface {
	Ingest(ctx context.Context, patientID string, batch []vitals.Input) (vitals.Result, error)
}

// RunConfig describes one simulation run.
type RunConfig struct {
	Scenario        Scenario
	DurationMinutes int
	// Interval is the wall-clock pause between simulated minutes.
	Interval time.Duration
	Start    time.Time
	Seed     int64
}

// Runner drives a scenario for a set of patients minute by minute.
type Runner struct {
	ingest Ingester
	logger zerolog.Logger
}

// NewRunner returns a runner that submits batches through ingest.
func NewRunner(ingest Ingester, logger zerolog.Logger) *Runner {
	return &Runner{ingest: ingest, logger: logger.With().Str("component", "simulator").Logger()}
}

// Run emits one batch per patient per simulated minute. Patients are posted
// concurrently; each patient's batches stay in timestamp order.
func (r *Runner) Run(ctx context.Context, patients []patient.Patient, cfg RunConfig) (vitals.Result, error) {
	var total vitals.Result
	if cfg.Start.IsZero() {
		cfg.Start = time.Now().UTC()
	}
	gens := make([]*Generator, len(patients))
	for i := range patients {
		gens[i] = NewGenerator(cfg.Seed + int64(i))
	}
	results := make([]vitals.Result, len(patients))

	for minute := 0; minute < cfg.DurationMinutes; minute++ {
		ts := cfg.Start.Add(time.Duration(minute) * time.Minute)

		g, gctx := errgroup.WithContext(ctx)
		for i := range patients {
			i := i
			g.Go(func() error {
				batch := gens[i].Generate(patients[i].BaselineProfile, cfg.Scenario, ts, minute)
				if len(batch) == 0 {
					return nil
				}
				res, err := r.ingest.Ingest(gctx, patients[i].ID, batch)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		for i := range results {
			total.Ingested += results[i].Ingested
			total.AlertsGenerated += results[i].AlertsGenerated
			results[i] = vitals.Result{}
		}
		r.logger.Info().
			Int("minute", minute).
			Int("ingested", total.Ingested).
			Int("alerts", total.AlertsGenerated).
			Msg("simulated minute posted")

		if cfg.Interval > 0 && minute < cfg.DurationMinutes-1 {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
	}
	return total, nil
}
