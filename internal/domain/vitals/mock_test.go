package vitals

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpm/rpm/internal/domain/alerts"
	"github.com/rpm/rpm/internal/domain/rules"
)

type mockRepo struct {
	mu       sync.Mutex
	items    []Measurement
	nextID   int64
	failOn   string
}

func (m *mockRepo) Insert(_ context.Context, ms *Measurement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && ms.Metric == m.failOn {
		return errors.New("disk full")
	}
	m.nextID++
	ms.ID = m.nextID
	m.items = append(m.items, *ms)
	return nil
}

func (m *mockRepo) Query(_ context.Context, q Query) ([]Measurement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Measurement
	for _, ms := range m.items {
		if ms.PatientID != q.PatientID || (q.Metric != "" && ms.Metric != q.Metric) {
			continue
		}
		if q.Start != nil && ms.Timestamp.Before(*q.Start) {
			continue
		}
		if q.End != nil && ms.Timestamp.After(*q.End) {
			continue
		}
		out = append(out, ms)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *mockRepo) ReadingsBetween(ctx context.Context, patientID string, start, end time.Time) ([]alerts.Reading, error) {
	ms, _ := m.Query(ctx, windowQuery(patientID, start, end))
	for i, j := 0, len(ms)-1; i < j; i, j = i+1, j-1 {
		ms[i], ms[j] = ms[j], ms[i]
	}
	return ReadingsOf(ms), nil
}

func (m *mockRepo) has(patientID, metric string, ts time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ms := range m.items {
		if ms.PatientID == patientID && ms.Metric == metric && ms.Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

func (m *mockRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

type mockAlerts struct {
	mu     sync.Mutex
	alerts []alerts.Alert
}

func (m *mockAlerts) Insert(_ context.Context, a *alerts.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *mockAlerts) CountAlerts(_ context.Context, patientID, metric string, severity rules.Severity, start, end time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.alerts {
		if a.PatientID == patientID && a.Metric == metric && a.Severity == severity &&
			!a.Timestamp.Before(start) && a.Timestamp.Before(end) {
			n++
		}
	}
	return n, nil
}

func (m *mockAlerts) has(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			return true
		}
	}
	return false
}

type patientSet map[string]bool

func (p patientSet) Exists(_ context.Context, id string) (bool, error) { return p[id], nil }

type staticRules []rules.Rule

func (s staticRules) RulesFor(_ context.Context, metric string) ([]rules.Rule, error) {
	var out []rules.Rule
	for _, r := range s {
		if r.Enabled && r.Metric == metric {
			out = append(out, r)
		}
	}
	return out, nil
}
