package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"geoqueue/backend/internal/audit/domain"
	"geoqueue/backend/internal/db"
)

const auditColumns = `id, site_id, actor_id, action, resource, ip, metadata, created_at`

type SQLRepository struct {
	conn *db.DB
}

// NewSQLRepository returns an audit log repository that uses the given db for persistence.
func NewSQLRepository(conn *db.DB) *SQLRepository {
	return &SQLRepository{conn: conn}
}

// GetByID returns the audit log for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.AuditLog, error) {
	q := r.conn.Dialect.Rebind(`SELECT ` + auditColumns + ` FROM audit_logs WHERE id = $1`)
	a, err := scanAuditLog(r.conn.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// ListBySite returns audit logs for the given site. Returns (nil, error) only on database errors.
func (r *SQLRepository) ListBySite(ctx context.Context, siteID string, limit, offset int32, filter Filter) ([]*domain.AuditLog, error) {
	where := []string{"site_id = $1"}
	args := []any{siteID}
	for _, f := range []struct {
		column string
		value  *string
	}{
		{"actor_id", filter.ActorID},
		{"action", filter.Action},
		{"resource", filter.Resource},
	} {
		if f.value != nil {
			args = append(args, *f.value)
			where = append(where, fmt.Sprintf("%s = $%d", f.column, len(args)))
		}
	}
	args = append(args, limit, offset)
	q := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		auditColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := r.conn.QueryContext(ctx, r.conn.Dialect.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create persists the audit log to the database. The audit log must have ID set.
func (r *SQLRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	actor := sql.NullString{String: a.ActorID, Valid: a.ActorID != ""}
	meta := sql.NullString{String: a.Metadata, Valid: a.Metadata != ""}
	q := r.conn.Dialect.Rebind(`INSERT INTO audit_logs (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	_, err := r.conn.ExecContext(ctx, q, a.ID, a.SiteID, actor, a.Action, a.Resource, a.IP, meta, a.CreatedAt.UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditLog(row rowScanner) (*domain.AuditLog, error) {
	var (
		a     domain.AuditLog
		actor sql.NullString
		meta  sql.NullString
	)
	if err := row.Scan(&a.ID, &a.SiteID, &actor, &a.Action, &a.Resource, &a.IP, &meta, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.ActorID = actor.String
	a.Metadata = meta.String
	return &a, nil
}
