package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Service manages enrolled patients.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, p *Patient) error {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id string) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]*Patient, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) Update(ctx context.Context, id string, u Update) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Apply(p)
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}

// Seed creates every patient not already present and returns how many were
// created.
func (s *Service) Seed(ctx context.Context, patients []Patient) (int, error) {
	created := 0
	for i := range patients {
		p := patients[i]
		err := s.Create(ctx, &p)
		switch {
		case errors.Is(err, ErrDuplicate):
			continue
		case err != nil:
			return created, fmt.Errorf("seed patient %s: %w", p.ID, err)
		}
		created++
	}
	s.logger.Info().Int("created", created).Int("total", len(patients)).Msg("patients seeded")
	return created, nil
}
