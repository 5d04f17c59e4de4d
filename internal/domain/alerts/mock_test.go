package alerts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpm/rpm/internal/domain/rules"
)

type mockRepo struct {
	mu     sync.Mutex
	alerts []Alert
}

func newMockRepo() *mockRepo { return &mockRepo{} }

func (m *mockRepo) Insert(_ context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.alerts = append(m.alerts, *a)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if a.ID == id {
			cp := a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Query(_ context.Context, f Filter) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Alert
	for _, a := range m.alerts {
		if f.PatientID != "" && a.PatientID != f.PatientID {
			continue
		}
		if f.Metric != "" && a.Metric != f.Metric {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		if f.Acknowledged != nil && a.Acknowledged != *f.Acknowledged {
			continue
		}
		if f.Start != nil && a.Timestamp.Before(*f.Start) {
			continue
		}
		if f.End != nil && !a.Timestamp.Before(*f.End) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockRepo) CountAlerts(_ context.Context, patientID, metric string, severity rules.Severity, start, end time.Time) (int, error) {
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

func (m *mockRepo) Acknowledge(_ context.Context, id uuid.UUID, note *string, at time.Time) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == id {
			m.alerts[i].Acknowledged = true
			m.alerts[i].ClinicianNote = note
			m.alerts[i].AcknowledgedAt = &at
			cp := m.alerts[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

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

func defaultRules() staticRules {
	cat := rules.DefaultCatalogue()
	for i := range cat {
		cat[i].ID = i + 1
	}
	return staticRules(cat)
}

type mockReadings struct {
	readings map[string][]Reading
}

func (m *mockReadings) add(patientID, metric string, value float64, ts time.Time) {
	if m.readings == nil {
		m.readings = map[string][]Reading{}
	}
	m.readings[patientID] = append(m.readings[patientID], Reading{Metric: metric, Value: value, Timestamp: ts})
}

func (m *mockReadings) ReadingsBetween(_ context.Context, patientID string, start, end time.Time) ([]Reading, error) {
	var out []Reading
	for _, r := range m.readings[patientID] {
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}
