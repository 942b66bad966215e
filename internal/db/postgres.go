// Package db opens the relational store (Postgres via pgx, or an embedded SQLite file) and
// carries the SQL dialect differences the repositories need.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB is an open store handle together with its SQL dialect. Close when done.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open opens the store for driver ("postgres" or "sqlite"). For sqlite, dsn is a file path.
func Open(driver, dsn string) (*DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "":
		return OpenPostgres(dsn)
	case "sqlite":
		return OpenSQLite(dsn)
	default:
		return nil, fmt.Errorf("db: unknown driver %q", driver)
	}
}

// OpenPostgres opens a Postgres connection pool using the given DSN and verifies it with a ping.
func OpenPostgres(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("db: DATABASE_URL is empty")
	}
	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &DB{DB: conn, Dialect: Postgres}, nil
}
