package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/rpm/rpm/internal/platform/auth"
)

// Service authenticates users and issues access tokens.
type Service struct {
	repo   Repository
	tokens *auth.TokenManager
	logger zerolog.Logger
	cost   int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewService returns a Service. tokens may be nil for seeding only.
func NewService(repo Repository, tokens *auth.TokenManager, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, logger: logger, cost: bcrypt.DefaultCost}
}

// Login checks the password and issues an access token. Unknown users,
// inactive users and wrong passwords all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		// spend the same time as a real comparison
		bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil || !u.IsActive {
		s.logger.Warn().Str("username", username).Msg("failed login")
		return nil, ErrInvalidCredentials
	}

	signed, exp, err := s.tokens.Issue(u.Username, u.Role)
	if err != nil {
		return nil, err
	}
	return &Token{AccessToken: signed, TokenType: "bearer", Role: u.Role, ExpiresAt: exp}, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	})
	return s.dummyHash
}

// Seed creates accounts whose usernames are free and returns how many were
// created. Existing accounts keep their passwords.
func (s *Service) Seed(ctx context.Context, users []SeedUser) (int, error) {
	created := 0
	for _, su := range users {
		if su.Role != auth.RoleAdmin && su.Role != auth.RoleClinician {
			return created, fmt.Errorf("user %s: unknown role %q", su.Username, su.Role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(su.Password), s.cost)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", su.Username, err)
		}
		fullName := su.FullName
		ok, err := s.repo.CreateIfAbsent(ctx, &User{
			Username:       su.Username,
			FullName:       &fullName,
			HashedPassword: string(hash),
			Role:           su.Role,
			IsActive:       true,
		})
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	s.logger.Info().Int("created", created).Msg("users seeded")
	return created, nil
}
