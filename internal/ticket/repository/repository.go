package repository

import (
	"context"
	"errors"
	"time"

	devicedomain "geoqueue/backend/internal/device/domain"
	"geoqueue/backend/internal/ticket/domain"
)

// ErrConflict is returned when a write lost a race: a uniqueness constraint fired or the store
// reported a serialization or lock conflict. The whole transaction may be retried.
var ErrConflict = errors.New("ticket ledger conflict")

// Ledger is the transactional ticket store.
type Ledger interface {
	// WithinTx runs fn in one transaction, committing when fn returns nil.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// GetByID returns the ticket for id, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	DayStats(ctx context.Context, siteID, day string) (DayStats, error)
}

// Tx is the set of ledger operations available inside a transaction.
// Lookup methods return nil when nothing matches.
type Tx interface {
	// LockDay creates the (site, day) counter if needed and holds its lock until the
	// transaction ends. Allocation decisions for one (site, day) are serialized on it.
	LockDay(ctx context.Context, siteID, day string) error
	// FindByDeviceSignals returns the earliest ticket sharing any non-empty signal with id.
	FindByDeviceSignals(ctx context.Context, siteID, day string, id devicedomain.Identity) (*domain.Ticket, error)
	FindByIdentity(ctx context.Context, siteID, day, claim string) (*domain.Ticket, error)
	// NextSequence increments the locked counter and returns the new value.
	NextSequence(ctx context.Context, siteID, day string) (int, error)
	// Insert stores t. Returns ErrConflict when a uniqueness constraint rejects it.
	Insert(ctx context.Context, t *domain.Ticket) error
	// GetByID returns the ticket for id with its row locked, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// MarkUsed moves an ACTIVE ticket to USED and returns the current row.
	// An already USED ticket is returned unchanged. Returns nil if id does not exist.
	MarkUsed(ctx context.Context, id string, at time.Time) (*domain.Ticket, error)
}

// DayStats counts tickets for one (site, day).
type DayStats struct {
	Total  int
	Active int
	Used   int
}
