package repository

import (
	"context"
	"database/sql"
	"errors"

	"geoqueue/backend/internal/db"
	"geoqueue/backend/internal/policy/domain"
)

const policyColumns = `id, site_id, rules, enabled, created_at`

type SQLRepository struct {
	conn *db.DB
}

// NewSQLRepository returns a policy repository that uses the given db for persistence.
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// GetByID returns the policy for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Policy, error) {
	q := r.conn.Dialect.Rebind(`SELECT ` + policyColumns + ` FROM admission_policies WHERE id = $1`)
	var p domain.Policy
	err := r.conn.QueryRowContext(ctx, q, id).Scan(&p.ID, &p.SiteID, &p.Rules, &p.Enabled, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListBySite returns all policies for the given site. Returns (nil, error) only on database errors.
func (r *SQLRepository) ListBySite(ctx context.Context, siteID string) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyColumns+` FROM admission_policies WHERE site_id = $1 ORDER BY created_at, id`, siteID)
}

func (r *SQLRepository) GetEnabledPoliciesBySite(ctx context.Context, siteID string) ([]*domain.Policy, error) {
	return r.list(ctx, `SELECT `+policyColumns+` FROM admission_policies WHERE site_id = $1 AND enabled ORDER BY created_at, id`, siteID)
}

// Create persists the policy to the database. The policy must have ID set.
func (r *SQLRepository) Create(ctx context.Context, p *domain.Policy) error {
	q := r.conn.Dialect.Rebind(`INSERT INTO admission_policies (` + policyColumns + `) VALUES ($1, $2, $3, $4, $5)`)
	_, err := r.conn.ExecContext(ctx, q, p.ID, p.SiteID, p.Rules, p.Enabled, p.CreatedAt.UTC())
	return err
}

// Update replaces the rules and enabled flag of an existing policy.
func (r *SQLRepository) Update(ctx context.Context, p *domain.Policy) error {
	q := r.conn.Dialect.Rebind(`UPDATE admission_policies SET rules = $2, enabled = $3 WHERE id = $1`)
	_, err := r.conn.ExecContext(ctx, q, p.ID, p.Rules, p.Enabled)
	return err
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Policy, error) {
	rows, err := r.conn.QueryContext(ctx, r.conn.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Policy
	for rows.Next() {
		var p domain.Policy
		if err := rows.Scan(&p.ID, &p.SiteID, &p.Rules, &p.Enabled, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
