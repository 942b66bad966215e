package repository

import (
	"context"

	"geoqueue/backend/internal/policy/domain"
)

// Repository defines persistence for admission policies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Policy, error)
	ListBySite(ctx context.Context, siteID string) ([]*domain.Policy, error)
	// GetEnabledPoliciesBySite returns the site's enabled policies, oldest first.
	GetEnabledPoliciesBySite(ctx context.Context, siteID string) ([]*domain.Policy, error)
	Create(ctx context.Context, p *domain.Policy) error
	Update(ctx context.Context, p *domain.Policy) error
}
