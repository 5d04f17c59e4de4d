package rules

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rpm/rpm/internal/platform/db"
)

type mockRepo struct {
	mu         sync.Mutex
	rules      []Rule
	nextID     int
	listCalls  atomic.Int32
	countCalls atomic.Int32
	// txCalls counts repository calls made with a transaction in the context.
	txCalls atomic.Int32
}

func (m *mockRepo) noteConn(ctx context.Context) {
	if db.ConnFromContext(ctx) != nil {
		m.txCalls.Add(1)
	}
}

func newMockRepo(seed ...Rule) *mockRepo {
	m := &mockRepo{}
	for _, r := range seed {
		m.nextID++
		r.ID = m.nextID
		m.rules = append(m.rules, r)
	}
	return m
}

func (m *mockRepo) ListEnabled(ctx context.Context) ([]Rule, error) {
	m.listCalls.Add(1)
	m.noteConn(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Rule
	for _, r := range m.rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Rule(nil), m.rules...), nil
}

func (m *mockRepo) Count(ctx context.Context) (int, error) {
	m.countCalls.Add(1)
	m.noteConn(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rules), nil
}

func (m *mockRepo) GetByID(_ context.Context, id int) (*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Insert(_ context.Context, r *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rules {
		if existing.Name == r.Name {
			return ErrDuplicateName
		}
	}
	m.nextID++
	r.ID = m.nextID
	r.CreatedAt = time.Now()
	m.rules = append(m.rules, *r)
	return nil
}

func (m *mockRepo) InsertIfAbsent(ctx context.Context, rules []Rule) (int, error) {
	m.noteConn(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
outer:
	for _, r := range rules {
		for _, existing := range m.rules {
			if existing.Name == r.Name {
				continue outer
			}
		}
		m.nextID++
		r.ID = m.nextID
		m.rules = append(m.rules, r)
		n++
	}
	return n, nil
}

func (m *mockRepo) Update(_ context.Context, r *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rules {
		if m.rules[i].ID == r.ID {
			m.rules[i] = *r
			return nil
		}
	}
	return ErrNotFound
}
