package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"geoqueue/backend/internal/db"
	devicedomain "geoqueue/backend/internal/device/domain"
	"geoqueue/backend/internal/ticket/domain"
)

const ticketColumns = `id, site_id, day, sequence, identity_claim, strict_fp, stable_fp, network_address,
    latitude, longitude, accuracy_meters, status, created_at, used_at`

type SQLLedger struct {
	conn *db.DB
}

// NewSQLLedger returns a ledger backed by conn (Postgres or SQLite).
func NewSQLLedger(conn *db.DB) *SQLLedger {
	return &SQLLedger{conn: conn}
}

// WithinTx runs fn in a transaction. Lock conflicts and serialization failures from the store
// are reported as ErrConflict.
func (l *SQLLedger) WithinTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := l.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()
	if err = fn(&sqlTxn{tx: sqlTx, d: l.conn.Dialect}); err != nil {
		return classify(err)
	}
	if err = sqlTx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func (l *SQLLedger) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	q := l.conn.Dialect.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`)
	return oneTicket(scanTicket(l.conn.QueryRowContext(ctx, q, id)))
}

func (l *SQLLedger) DayStats(ctx context.Context, siteID, day string) (DayStats, error) {
	q := l.conn.Dialect.Rebind(`SELECT COUNT(*),
    COALESCE(SUM(CASE WHEN status = 'ACTIVE' THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN status = 'USED' THEN 1 ELSE 0 END), 0)
FROM tickets WHERE site_id = $1 AND day = $2`)
	var s DayStats
	err := l.conn.QueryRowContext(ctx, q, siteID, day).Scan(&s.Total, &s.Active, &s.Used)
	return s, err
}

type sqlTxn struct {
	tx *sql.Tx
	d  db.Dialect
}

func (t *sqlTxn) LockDay(ctx context.Context, siteID, day string) error {
	// Seed from existing tickets so a lost counter row cannot restart the run at 1.
	seed := t.d.Rebind(`INSERT INTO ticket_counters (site_id, day, last_sequence)
SELECT CAST($1 AS TEXT), CAST($2 AS TEXT), COALESCE(MAX(sequence), 0)
FROM tickets WHERE site_id = $1 AND day = $2
ON CONFLICT (site_id, day) DO NOTHING`)
	if _, err := t.tx.ExecContext(ctx, seed, siteID, day); err != nil {
		return fmt.Errorf("lock day: %w", err)
	}
	lock := t.d.Rebind(`SELECT last_sequence FROM ticket_counters WHERE site_id = $1 AND day = $2` + t.d.ForUpdate())
	var last int
	if err := t.tx.QueryRowContext(ctx, lock, siteID, day).Scan(&last); err != nil {
		return fmt.Errorf("lock day: %w", err)
	}
	return nil
}

func (t *sqlTxn) FindByDeviceSignals(ctx context.Context, siteID, day string, id devicedomain.Identity) (*domain.Ticket, error) {
	q := t.d.Rebind(`SELECT ` + ticketColumns + ` FROM tickets
WHERE site_id = $1 AND day = $2 AND (
    ($3 <> '' AND strict_fp = $3) OR
    ($4 <> '' AND stable_fp = $4) OR
    ($5 <> '' AND network_address = $5))
ORDER BY sequence LIMIT 1`)
	return oneTicket(scanTicket(t.tx.QueryRowContext(ctx, q, siteID, day, id.Strict, id.Stable, id.NetworkAddress)))
}

func (t *sqlTxn) FindByIdentity(ctx context.Context, siteID, day, claim string) (*domain.Ticket, error) {
	q := t.d.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE site_id = $1 AND day = $2 AND identity_claim = $3`)
	return oneTicket(scanTicket(t.tx.QueryRowContext(ctx, q, siteID, day, claim)))
}

func (t *sqlTxn) NextSequence(ctx context.Context, siteID, day string) (int, error) {
	q := t.d.Rebind(`UPDATE ticket_counters SET last_sequence = last_sequence + 1
WHERE site_id = $1 AND day = $2 RETURNING last_sequence`)
	var next int
	err := t.tx.QueryRowContext(ctx, q, siteID, day).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("next sequence: day %s/%s is not locked", siteID, day)
	}
	return next, err
}

func (t *sqlTxn) Insert(ctx context.Context, tk *domain.Ticket) error {
	q := t.d.Rebind(`INSERT INTO tickets (` + ticketColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)
	_, err := t.tx.ExecContext(ctx, q,
		tk.ID, tk.SiteID, tk.Day, tk.Sequence, tk.IdentityClaim, tk.StrictFP, tk.StableFP, tk.NetworkAddress,
		tk.Latitude, tk.Longitude, tk.AccuracyMeters, string(tk.Status), tk.CreatedAt.UTC(), nullTime(tk.UsedAt))
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

func (t *sqlTxn) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	q := t.d.Rebind(`SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1` + t.d.ForUpdate())
	return oneTicket(scanTicket(t.tx.QueryRowContext(ctx, q, id)))
}

func (t *sqlTxn) MarkUsed(ctx context.Context, id string, at time.Time) (*domain.Ticket, error) {
	q := t.d.Rebind(`UPDATE tickets SET status = 'USED', used_at = $2 WHERE id = $1 AND status = 'ACTIVE'`)
	if _, err := t.tx.ExecContext(ctx, q, id, at.UTC()); err != nil {
		return nil, err
	}
	return t.GetByID(ctx, id)
}

func classify(err error) error {
	if errors.Is(err, ErrConflict) {
		return err
	}
	if db.IsUniqueViolation(err) || db.IsTransientConflict(err) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		t      domain.Ticket
		status string
		usedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.SiteID, &t.Day, &t.Sequence, &t.IdentityClaim, &t.StrictFP, &t.StableFP, &t.NetworkAddress,
		&t.Latitude, &t.Longitude, &t.AccuracyMeters, &status, &t.CreatedAt, &usedAt)
	if err != nil {
		return nil, err
	}
	t.Status = domain.Status(status)
	if usedAt.Valid {
		u := usedAt.Time
		t.UsedAt = &u
	}
	return &t, nil
}

func oneTicket(t *domain.Ticket, err error) (*domain.Ticket, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
