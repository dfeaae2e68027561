// Package storage defines the table-store abstraction shared by the SQL and
// in-memory backends. Tables are schemaless from the caller's point of view:
// a record is a column-to-value map and tables are addressed by name.
package storage

import (
	"context"
	"errors"
	"regexp"
)

// Sentinel errors returned by Store implementations. Callers match them with
// errors.Is to pick the right HTTP status.
var (
	// ErrTableNotFound marks reads against a table that does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrUnavailable marks connection-class failures: backend unreachable,
	// dead pool connection, network down.
	ErrUnavailable = errors.New("storage unavailable")
)

// Store is the minimal table-store surface the service is built on.
// Implementations must be safe for concurrent use.
type Store interface {
	// Insert writes one record into the named table.
	Insert(ctx context.Context, table string, rec Record) error

	// Select returns records matching all conditions, paged by limit and
	// offset. A negative limit returns the entire matching set; offset
	// must be 0 in that case.
	Select(ctx context.Context, table string, conds []Cond, limit, offset int) ([]Record, error)

	// Count returns the size of the full matching set, ignoring paging.
	Count(ctx context.Context, table string, conds []Cond) (int, error)

	// Exists reports whether at least one record matches all conditions.
	// Cheaper than Count on large tables.
	Exists(ctx context.Context, table string, conds []Cond) (bool, error)

	// TableExists reports whether the named table exists.
	TableExists(ctx context.Context, table string) (bool, error)

	// ListTables returns the names of all tables, sorted.
	ListTables(ctx context.Context) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidName reports whether s is usable as a table or column name.
// Identifiers end up interpolated into statement text, so anything outside
// [A-Za-z0-9_]+ is rejected before it reaches the backend.
func ValidName(s string) bool {
	return nameRe.MatchString(s)
}
