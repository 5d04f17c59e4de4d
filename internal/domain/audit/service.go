package audit

import (
	"context"

	"github.com/rpm/rpm/internal/platform/middleware"
	"github.com/rpm/rpm/pkg/pagination"
)

const (
	DefaultListLimit = 200
	MaxListLimit     = 1000
)

// Service stores the access trail and implements middleware.AuditRecorder.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordAccess implements middleware.AuditRecorder.
func (s *Service) RecordAccess(ctx context.Context, in middleware.AuditEntry) error {
	e := &Entry{
		Actor:  in.Actor,
		Role:   in.Role,
		Action: in.Action,
		Details: map[string]interface{}{
			"method":     in.Method,
			"path":       in.Path,
			"status":     in.StatusCode,
			"request_id": in.RequestID,
			"remote_ip":  in.RemoteIP,
		},
		Timestamp: in.Timestamp,
	}
	if in.PatientID != "" {
		pid := in.PatientID
		e.PatientID = &pid
	}
	return s.repo.Insert(ctx, e)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Entry, error) {
	f.Limit = pagination.Clamp(f.Limit, DefaultListLimit, MaxListLimit)
	return s.repo.List(ctx, f)
}
