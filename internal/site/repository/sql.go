package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"geoqueue/backend/internal/db"
	"geoqueue/backend/internal/site/domain"
)

const siteColumns = `id, name, latitude, longitude, radius_meters, created_at`

type SQLRepository struct {
	conn *db.DB
}

// NewSQLRepository returns a site repository backed by conn (Postgres or SQLite).
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// GetByID returns the site for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Site, error) {
	q := r.conn.Dialect.Rebind(`SELECT ` + siteColumns + ` FROM sites WHERE id = $1`)
	s, err := scanSite(r.conn.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *SQLRepository) GetDefault(ctx context.Context) (*domain.Site, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY created_at, id LIMIT 2`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sites []*domain.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(sites) != 1 {
		return nil, nil
	}
	return sites[0], nil
}

func (r *SQLRepository) List(ctx context.Context) ([]*domain.Site, error) {
	rows, err := r.conn.QueryContext(ctx, `SELECT `+siteColumns+` FROM sites ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Upsert validates s and writes it. CreatedAt defaults to now and is kept on update.
func (r *SQLRepository) Upsert(ctx context.Context, s *domain.Site) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	q := r.conn.Dialect.Rebind(`INSERT INTO sites (` + siteColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    name = excluded.name,
    latitude = excluded.latitude,
    longitude = excluded.longitude,
    radius_meters = excluded.radius_meters`)
	_, err := r.conn.ExecContext(ctx, q, s.ID, s.Name, s.Latitude, s.Longitude, s.RadiusMeters, s.CreatedAt.UTC())
	return err
}

func (r *SQLRepository) UpdateRadius(ctx context.Context, id string, radiusMeters float64) (bool, error) {
	if !(radiusMeters > 0) {
		return false, domain.ErrSiteRadius
	}
	q := r.conn.Dialect.Rebind(`UPDATE sites SET radius_meters = $2 WHERE id = $1`)
	res, err := r.conn.ExecContext(ctx, q, id, radiusMeters)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*domain.Site, error) {
	var s domain.Site
	if err := row.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &s.RadiusMeters, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}
