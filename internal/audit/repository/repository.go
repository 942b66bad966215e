package repository

import (
	"context"

	"geoqueue/backend/internal/audit/domain"
)

// Filter narrows ListBySite. Nil fields match everything.
type Filter struct {
	ActorID  *string
	Action   *string
	Resource *string
}

// Repository defines persistence for audit logs.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.AuditLog, error)
	// ListBySite returns the site's entries newest first, paginated by limit and offset.
	ListBySite(ctx context.Context, siteID string, limit, offset int32, filter Filter) ([]*domain.AuditLog, error)
	Create(ctx context.Context, a *domain.AuditLog) error
}
