package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestOpenPostgres_EmptyDSN(t *testing.T) {
	conn, err := OpenPostgres("")
	if err == nil {
		_ = conn.Close()
		t.Fatal("OpenPostgres with empty DSN should return error")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("Open with unknown driver should return error")
	}
}

func TestOpenSQLite_AppliesSchema(t *testing.T) {
	conn, err := Open("sqlite", filepath.Join(t.TempDir(), "geoqueue.db"))
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer conn.Close()
	if conn.Dialect != SQLite {
		t.Errorf("Dialect = %v, want sqlite", conn.Dialect)
	}
	for _, table := range []string{"sites", "tickets", "ticket_counters", "admission_policies", "audit_logs"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestOpenSQLite_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geoqueue.db")
	for i := 0; i < 2; i++ {
		conn, err := OpenSQLite(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		_ = conn.Close()
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite(" "); err == nil {
		t.Fatal("OpenSQLite with empty path should return error")
	}
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT id FROM tickets WHERE site_id = $1 AND day = $2 AND sequence > $10`
	if got := Postgres.Rebind(q); got != q {
		t.Errorf("Postgres.Rebind changed query: %q", got)
	}
	want := `SELECT id FROM tickets WHERE site_id = ?1 AND day = ?2 AND sequence > ?10`
	if got := SQLite.Rebind(q); got != want {
		t.Errorf("SQLite.Rebind = %q, want %q", got, want)
	}
}

func TestDialect_ForUpdate(t *testing.T) {
	if Postgres.ForUpdate() != " FOR UPDATE" {
		t.Errorf("Postgres.ForUpdate = %q", Postgres.ForUpdate())
	}
	if SQLite.ForUpdate() != "" {
		t.Errorf("SQLite.ForUpdate = %q", SQLite.ForUpdate())
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !IsUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Error("23505 should be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is a foreign key violation")
	}
	if IsUniqueViolation(errors.New("duplicate")) {
		t.Error("plain error should not be a unique violation")
	}

	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "u.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer conn.Close()
	insert := `INSERT INTO sites (id, name, latitude, longitude, radius_meters, created_at) VALUES ('s', 'S', 0, 0, 10, CURRENT_TIMESTAMP)`
	if _, err := conn.Exec(insert); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err = conn.Exec(insert)
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate primary key on sqlite: IsUniqueViolation(%v) = false", err)
	}
}

func TestIsTransientConflict(t *testing.T) {
	for _, code := range []string{"40001", "40P01"} {
		if !IsTransientConflict(&pgconn.PgError{Code: code}) {
			t.Errorf("%s should be transient", code)
		}
	}
	if IsTransientConflict(&pgconn.PgError{Code: "23505"}) {
		t.Error("unique violation is not transient")
	}
	if IsTransientConflict(errors.New("boom")) {
		t.Error("plain error is not transient")
	}
}
