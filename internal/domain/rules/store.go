package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rpm/rpm/internal/platform/db"
	"github.com/rpm/rpm/internal/platform/metrics"
)

const DefaultCacheTTL = 30 * time.Second

// Store serves the active rule set. Reads hit an in-memory snapshot that is
// refreshed after ttl or after any write through the store. Refills are
// collapsed so concurrent readers issue one query.
type Store struct {
	repo     Repository
	logger   zerolog.Logger
	ttl      time.Duration
	defaults []Rule
	now      func() time.Time

	mu       sync.RWMutex
	enabled  []Rule
	loadedAt time.Time
	valid    bool

	group singleflight.Group
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCacheTTL sets how long a loaded snapshot is served. Non-positive values are ignored.
func WithCacheTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithDefaults replaces the catalogue used to seed an empty store.
func WithDefaults(rules []Rule) StoreOption {
	return func(s *Store) { s.defaults = rules }
}

// WithClock overrides the time source used for cache expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store over repo seeded from the built-in catalogue.
func NewStore(repo Repository, logger zerolog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		repo:     repo,
		logger:   logger.With().Str("component", "rule_store").Logger(),
		ttl:      DefaultCacheTTL,
		defaults: DefaultCatalogue(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LoadEnabledRules returns every enabled rule. When the backing store holds no
// rules at all the default catalogue is seeded first.
func (s *Store) LoadEnabledRules(ctx context.Context) ([]Rule, error) {
	s.mu.RLock()
	if s.valid && s.now().Sub(s.loadedAt) < s.ttl {
		out := append([]Rule(nil), s.enabled...)
		s.mu.RUnlock()
		metrics.RuleCacheLookups.WithLabelValues("hit").Inc()
		return out, nil
	}
	s.mu.RUnlock()
	metrics.RuleCacheLookups.WithLabelValues("miss").Inc()

	v, err, _ := s.group.Do("load", func() (interface{}, error) {
		// Detached from the caller's cancellation and from any transaction it
		// carries: the snapshot is shared, so it must only see committed rows.
		return s.refill(db.WithoutConn(context.WithoutCancel(ctx)))
	})
	if err != nil {
		return nil, err
	}
	return append([]Rule(nil), v.([]Rule)...), nil
}

func (s *Store) refill(ctx context.Context) ([]Rule, error) {
	if _, err := s.SeedDefaults(ctx); err != nil {
		return nil, err
	}
	enabled, err := s.repo.ListEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("list enabled rules: %w", err)
	}

	s.mu.Lock()
	s.enabled = enabled
	s.loadedAt = s.now()
	s.valid = true
	s.mu.Unlock()
	return enabled, nil
}

// RulesFor returns the enabled rules for one metric in rule order.
func (s *Store) RulesFor(ctx context.Context, metric string) ([]Rule, error) {
	all, err := s.LoadEnabledRules(ctx)
	if err != nil {
		return nil, err
	}
	var out []Rule
	for _, r := range all {
		if r.Metric == metric {
			out = append(out, r)
		}
	}
	return out, nil
}

// SeedDefaults inserts the default catalogue when the store is empty and
// returns the number of rules created. A store whose rules are all disabled
// is not empty.
func (s *Store) SeedDefaults(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do("seed", func() (interface{}, error) {
		n, err := s.repo.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count rules: %w", err)
		}
		if n > 0 {
			return 0, nil
		}
		inserted, err := s.repo.InsertIfAbsent(ctx, s.defaults)
		if err != nil {
			return 0, fmt.Errorf("seed default rules: %w", err)
		}
		if inserted > 0 {
			s.logger.Info().Int("rules", inserted).Msg("seeded default rule catalogue")
		}
		return inserted, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Import inserts catalogue rules whose names are not yet taken.
func (s *Store) Import(ctx context.Context, catalogue []Rule) (int, error) {
	for i := range catalogue {
		if err := catalogue[i].Validate(); err != nil {
			return 0, err
		}
	}
	n, err := s.repo.InsertIfAbsent(ctx, catalogue)
	s.Invalidate()
	return n, err
}

// List returns every rule, enabled or not, straight from the repository.
func (s *Store) List(ctx context.Context) ([]Rule, error) {
	return s.repo.List(ctx)
}

// Create validates and inserts r, then drops the cached snapshot.
func (s *Store) Create(ctx context.Context, r *Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.repo.Insert(ctx, r); err != nil {
		return err
	}
	s.Invalidate()
	s.logger.Info().Int("rule_id", r.ID).Str("name", r.Name).Msg("rule created")
	return nil
}

// Update applies a partial change. Rules are never deleted; disabling is the
// way to retire one.
func (s *Store) Update(ctx context.Context, id int, p Patch) (*Rule, error) {
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Threshold != nil {
		r.Threshold = *p.Threshold
	}
	if p.Severity != nil {
		sev, err := ParseSeverity(*p.Severity)
		if err != nil {
			return nil, err
		}
		r.Severity = sev
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, err
	}
	s.Invalidate()
	s.logger.Info().Int("rule_id", r.ID).Bool("enabled", r.Enabled).Msg("rule updated")
	return r, nil
}

// Invalidate drops the cached snapshot so the next read goes to the store.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}
