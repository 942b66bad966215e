package db

import (
	"regexp"
)

// Dialect identifies the SQL flavor of a store. Repositories write queries with $N
// placeholders and call Rebind.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// Rebind rewrites $N placeholders for the dialect. SQLite accepts ?N with the same numbering.
func (d Dialect) Rebind(query string) string {
	if d != SQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

// ForUpdate returns the row-lock suffix for a SELECT. SQLite transactions are opened
// BEGIN IMMEDIATE, which already holds the database write lock, so it needs none.
func (d Dialect) ForUpdate() string {
	if d == SQLite {
		return ""
	}
	return " FOR UPDATE"
}
