package ports

import (
	"context"

	"github.com/99minutos/backoffice-console/internal/core/domain"
)

// AuditRecorder accepts auth events without blocking the caller.
type AuditRecorder interface {
	Record(event domain.AuthEvent)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuthEvent) error
}

// AuditService processes a single audit event.
type AuditService interface {
	Process(ctx context.Context, event domain.AuthEvent) error
}
