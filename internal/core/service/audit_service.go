package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/backoffice-console/internal/core/domain"
	"github.com/99minutos/backoffice-console/internal/core/ports"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService returns an AuditService that persists each event.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Process stamps and stores a single auth event.
func (s *auditService) Process(ctx context.Context, ev domain.AuthEvent) error {
	if ev.Kind == "" {
		return fmt.Errorf("record auth event: missing kind")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := s.repo.Insert(ctx, &ev); err != nil {
		return fmt.Errorf("record auth event: %w", err)
	}
	s.log.Debug().
		Str("kind", string(ev.Kind)).
		Str("console_id", ev.SessionID).
		Str("user_id", ev.UserID).
		Msg("auth event recorded")
	return nil
}
