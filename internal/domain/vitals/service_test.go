package vitals

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/domain/alerts"
	"github.com/rpm/rpm/internal/domain/rules"
	"github.com/rpm/rpm/internal/platform/db"
	"github.com/rpm/rpm/internal/platform/events"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// checkingSink records envelopes and checks that each one is already stored.
type checkingSink struct {
	t      *testing.T
	repo   *mockRepo
	alerts *mockAlerts

	mu        sync.Mutex
	envelopes []events.Envelope
}

func (s *checkingSink) Broadcast(_ context.Context, env events.Envelope) {
	switch p := env.Payload.(type) {
	case events.VitalPayload:
		if !s.repo.has(p.PatientID, p.Metric, p.Timestamp) {
			s.t.Errorf("vital broadcast before persistence: %+v", p)
		}
	case events.AlertPayload:
		if !s.alerts.has(uuid.MustParse(p.ID)) {
			s.t.Errorf("alert broadcast before persistence: %+v", p)
		}
	}
	s.mu.Lock()
	s.envelopes = append(s.envelopes, env)
	s.mu.Unlock()
}

type fixture struct {
	svc    *Service
	repo   *mockRepo
	alerts *mockAlerts
	sink   *checkingSink
}

func newFixture(t *testing.T, rs staticRules) *fixture {
	repo := &mockRepo{}
	alertRepo := &mockAlerts{}
	sink := &checkingSink{t: t, repo: repo, alerts: alertRepo}
	svc := NewService(
		db.NoopTxRunner{},
		repo,
		alertRepo,
		patientSet{"P001": true, "P002": true},
		alerts.NewEvaluator(rs, alertRepo),
		alerts.NewCorrelationDetector(repo),
		sink,
		zerolog.Nop(),
	)
	return &fixture{svc: svc, repo: repo, alerts: alertRepo, sink: sink}
}

func tachycardiaWarning() staticRules {
	return staticRules{{ID: 1, Name: "Tachycardia Warning", Metric: "heart_rate", Operator: rules.OpGreater, Threshold: 110, Severity: rules.SeverityWarning, Enabled: true}}
}

func TestIngest_EscalationScenario(t *testing.T) {
	f := newFixture(t, tachycardiaWarning())
	batch := []Input{
		{Metric: "heart_rate", Value: 115, Unit: "bpm", Timestamp: t0, Source: "device"},
		{Metric: "heart_rate", Value: 115, Unit: "bpm", Timestamp: t0.Add(5 * time.Minute), Source: "device"},
		{Metric: "heart_rate", Value: 115, Unit: "bpm", Timestamp: t0.Add(10 * time.Minute), Source: "device"},
	}

	res, err := f.svc.Ingest(context.Background(), "P001", batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Ingested != 3 || res.AlertsGenerated != 3 {
		t.Fatalf("unexpected result %+v", res)
	}

	want := []rules.Severity{rules.SeverityWarning, rules.SeverityWarning, rules.SeverityCritical}
	for i, a := range f.alerts.alerts {
		if a.Severity != want[i] {
			t.Errorf("alert %d severity = %s, want %s", i, a.Severity, want[i])
		}
	}
	if f.alerts.alerts[2].Trigger != "Tachycardia Warning (escalated)" {
		t.Errorf("unexpected trigger %q", f.alerts.alerts[2].Trigger)
	}
	if f.repo.items[2].Status != StatusCritical {
		t.Errorf("expected escalated measurement status critical, got %s", f.repo.items[2].Status)
	}
}

func TestIngest_CorrelationScenario(t *testing.T) {
	f := newFixture(t, nil)
	batch := []Input{
		{Metric: "heart_rate", Value: 125, Unit: "bpm", Timestamp: t0},
		{Metric: "spo2", Value: 85, Unit: "%", Timestamp: t0},
	}

	res, err := f.svc.Ingest(context.Background(), "P001", batch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AlertsGenerated != 1 {
		t.Fatalf("expected exactly one correlation alert, got %d", res.AlertsGenerated)
	}
	a := f.alerts.alerts[0]
	if a.Metric != alerts.MultiMetric || a.Severity != rules.SeverityCritical || !a.Timestamp.Equal(t0) {
		t.Errorf("unexpected correlation alert %+v", a)
	}
	if f.repo.items[1].Status != StatusCritical {
		t.Errorf("expected spo2 status raised to critical, got %s", f.repo.items[1].Status)
	}
}

func TestIngest_BroadcastOrder(t *testing.T) {
	f := newFixture(t, tachycardiaWarning())
	batch := []Input{
		{Metric: "heart_rate", Value: 80, Timestamp: t0},
		{Metric: "heart_rate", Value: 120, Timestamp: t0.Add(time.Minute)},
	}
	if _, err := f.svc.Ingest(context.Background(), "P001", batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []events.Type{events.TypeVital, events.TypeVital, events.TypeAlert}
	if len(f.sink.envelopes) != len(want) {
		t.Fatalf("expected %d envelopes, got %d", len(want), len(f.sink.envelopes))
	}
	for i, env := range f.sink.envelopes {
		if env.Type != want[i] {
			t.Errorf("envelope %d type = %s, want %s", i, env.Type, want[i])
		}
		if env.PatientID != "P001" {
			t.Errorf("envelope %d patient = %q", i, env.PatientID)
		}
	}
	first := f.sink.envelopes[0].Payload.(events.VitalPayload)
	if first.Status != string(StatusNormal) {
		t.Errorf("expected normal status, got %s", first.Status)
	}
}

func TestIngest_StatusDerivation(t *testing.T) {
	f := newFixture(t, nil)
	batch := []Input{
		{Metric: "weight", Value: 80, Timestamp: t0, NormalLow: ptr(60), NormalHigh: ptr(75)},
		{Metric: "weight", Value: 70, Timestamp: t0.Add(time.Minute), NormalLow: ptr(60), NormalHigh: ptr(75)},
		{Metric: "weight", Value: 70, Timestamp: t0.Add(2 * time.Minute), Status: "critical"},
	}
	if _, err := f.svc.Ingest(context.Background(), "P001", batch); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Status{StatusWarning, StatusNormal, StatusCritical}
	for i, m := range f.repo.items {
		if m.Status != want[i] {
			t.Errorf("measurement %d status = %s, want %s", i, m.Status, want[i])
		}
	}
}

func TestIngest_UnknownPatient(t *testing.T) {
	f := newFixture(t, tachycardiaWarning())
	_, err := f.svc.Ingest(context.Background(), "P999", []Input{{Metric: "heart_rate", Value: 120, Timestamp: t0}})
	if !errors.Is(err, ErrPatientNotFound) {
		t.Fatalf("expected ErrPatientNotFound, got %v", err)
	}
	if f.repo.count() != 0 || len(f.sink.envelopes) != 0 {
		t.Fatal("nothing should be stored or broadcast for an unknown patient")
	}
}

func TestIngest_InvalidInputRejectsWholeBatch(t *testing.T) {
	f := newFixture(t, tachycardiaWarning())
	_, err := f.svc.Ingest(context.Background(), "P001", []Input{
		{Metric: "heart_rate", Value: 120, Timestamp: t0},
		{Metric: "", Value: 1, Timestamp: t0},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if f.repo.count() != 0 {
		t.Fatal("no measurement should be stored when validation fails")
	}
}

func TestIngest_PersistenceFailureStopsBroadcast(t *testing.T) {
	f := newFixture(t, tachycardiaWarning())
	f.repo.failOn = "spo2"

	res, err := f.svc.Ingest(context.Background(), "P001", []Input{
		{Metric: "heart_rate", Value: 120, Timestamp: t0},
		{Metric: "spo2", Value: 80, Timestamp: t0.Add(time.Minute)},
		{Metric: "heart_rate", Value: 125, Timestamp: t0.Add(2 * time.Minute)},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Ingested != 1 || res.AlertsGenerated != 1 {
		t.Fatalf("expected only the first measurement counted, got %+v", res)
	}
	if len(f.sink.envelopes) != 2 {
		t.Fatalf("expected vital and alert from the first measurement only, got %d envelopes", len(f.sink.envelopes))
	}
}

func TestIngest_EmptyBatch(t *testing.T) {
	f := newFixture(t, tachycardiaWarning())
	res, err := f.svc.Ingest(context.Background(), "P001", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Ingested != 0 || res.AlertsGenerated != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIngest_BatchTooLarge(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Ingest(context.Background(), "P001", make([]Input, MaxBatchSize+1))
	if !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
}

func TestIngest_ConcurrentPatients(t *testing.T) {
	f := newFixture(t, tachycardiaWarning())
	var wg sync.WaitGroup
	for _, pid := range []string{"P001", "P002"} {
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(pid string, i int) {
				defer wg.Done()
				ts := t0.Add(time.Duration(i) * time.Second)
				if _, err := f.svc.Ingest(context.Background(), pid, []Input{{Metric: "heart_rate", Value: 90, Timestamp: ts}}); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}(pid, i)
		}
	}
	wg.Wait()
	if f.repo.count() != 10 {
		t.Fatalf("expected 10 measurements, got %d", f.repo.count())
	}
}

func TestService_QueryLimits(t *testing.T) {
	f := newFixture(t, nil)
	for i := 0; i < 5; i++ {
		f.repo.Insert(context.Background(), &Measurement{PatientID: "P001", Metric: "spo2", Value: 97, Timestamp: t0.Add(time.Duration(i) * time.Minute)})
	}
	got, err := f.svc.Query(context.Background(), Query{PatientID: "P001", Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || !got[0].Timestamp.Equal(t0.Add(4*time.Minute)) {
		t.Fatalf("expected newest two, got %+v", got)
	}
}
