package repository

import (
	"context"

	"geoqueue/backend/internal/site/domain"
)

// Repository defines persistence for sites.
type Repository interface {
	// GetByID returns the site for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Site, error)
	// GetDefault returns the only site when exactly one exists, otherwise nil.
	GetDefault(ctx context.Context) (*domain.Site, error)
	List(ctx context.Context) ([]*domain.Site, error)
	// Upsert creates the site or replaces its name, center and radius.
	Upsert(ctx context.Context, s *domain.Site) error
	// UpdateRadius changes the admission radius. Returns false if the site does not exist.
	UpdateRadius(ctx context.Context, id string, radiusMeters float64) (bool, error)
}
