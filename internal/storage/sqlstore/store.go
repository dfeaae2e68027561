package sqlstore

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/rantahar/aware-filter/internal/storage"
)

// Store implements storage.Store on a *sql.DB pool. It holds no state of its
// own; concurrency is handled by the pool.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an existing connection pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Insert writes one record. Columns are taken from the record's keys in
// sorted order so the statement text is deterministic.
func (s *Store) Insert(ctx context.Context, table string, rec storage.Record) error {
	if err := checkName(table); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if len(rec) == 0 {
		return fmt.Errorf("insert into %s: empty record", table)
	}

	cols := make([]string, 0, len(rec))
	for col := range rec {
		if err := checkName(col); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, col := range cols {
		args[i] = bindValue(rec[col])
		marks[i] = "?"
	}

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(marks, ", "))

	if _, err := s.db.ExecContext(ctx, s.dialect.Rebind(q), args...); err != nil {
		return s.wrap("insert into "+table, err)
	}
	return nil
}

// Select returns records matching all conditions.
func (s *Store) Select(ctx context.Context, table string, conds []storage.Cond, limit, offset int) ([]storage.Record, error) {
	if err := checkName(table); err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	where, args, err := buildWhere(conds)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", table, err)
	}

	q := "SELECT * FROM " + table + where
	if limit >= 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(q), args...)
	if err != nil {
		return nil, s.wrap("select from "+table, err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Count returns the size of the full matching set.
func (s *Store) Count(ctx context.Context, table string, conds []storage.Cond) (int, error) {
	if err := checkName(table); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	where, args, err := buildWhere(conds)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}

	var n int
	q := "SELECT COUNT(*) FROM " + table + where
	if err := s.db.QueryRowContext(ctx, s.dialect.Rebind(q), args...).Scan(&n); err != nil {
		return 0, s.wrap("count "+table, err)
	}
	return n, nil
}

// Exists reports whether any row matches all conditions, without counting.
func (s *Store) Exists(ctx context.Context, table string, conds []storage.Cond) (bool, error) {
	if err := checkName(table); err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	where, args, err := buildWhere(conds)
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", table, err)
	}

	var one int
	q := "SELECT 1 FROM " + table + where + " LIMIT 1"
	err = s.db.QueryRowContext(ctx, s.dialect.Rebind(q), args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, s.wrap("exists "+table, err)
	}
	return true, nil
}

// TableExists probes the schema catalog for the named table.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	if err := checkName(table); err != nil {
		return false, fmt.Errorf("table exists: %w", err)
	}

	var exists bool
	q := s.dialect.Rebind(s.dialect.TableExistsQuery())
	if err := s.db.QueryRowContext(ctx, q, table).Scan(&exists); err != nil {
		return false, s.wrap("table exists "+table, err)
	}
	return exists, nil
}

// ListTables returns all base tables visible to the connection, sorted.
func (s *Store) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.ListTablesQuery())
	if err != nil {
		return nil, s.wrap("list tables", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// Statement assembly
// ---------------------------------------------------------------------------

// buildWhere renders conditions into a WHERE clause with ? placeholders.
func buildWhere(conds []storage.Cond) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	frags := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		if err := checkName(c.Column); err != nil {
			return "", nil, err
		}
		switch c.Op {
		case storage.OpEq, storage.OpGte, storage.OpLte:
			if len(c.Values) != 1 {
				return "", nil, fmt.Errorf("condition on %s: want 1 value, have %d", c.Column, len(c.Values))
			}
			frags = append(frags, c.Column+" "+opSQL(c.Op)+" ?")
			args = append(args, bindValue(c.Values[0]))
		case storage.OpIn:
			if len(c.Values) == 0 {
				// IN over nothing matches no rows.
				frags = append(frags, "1 = 0")
				continue
			}
			marks := strings.Repeat("?, ", len(c.Values))
			frags = append(frags, c.Column+" IN ("+marks[:len(marks)-2]+")")
			for _, v := range c.Values {
				args = append(args, bindValue(v))
			}
		default:
			return "", nil, fmt.Errorf("condition on %s: unknown operator", c.Column)
		}
	}
	return " WHERE " + strings.Join(frags, " AND "), args, nil
}

func opSQL(op storage.Op) string {
	switch op {
	case storage.OpGte:
		return ">="
	case storage.OpLte:
		return "<="
	default:
		return "="
	}
}

// bindValue lowers decoder-specific types to plain driver values. Integers
// keep full 64-bit precision; everything else passes through.
func bindValue(v any) any {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	return v
}

func checkName(name string) error {
	if !storage.ValidName(name) {
		return fmt.Errorf("invalid identifier %q", name)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Row scanning
// ---------------------------------------------------------------------------

// binaryTypes are the database types whose values stay as raw bytes. Raw
// bytes encode as base64 when a record is rendered to JSON.
var binaryTypes = map[string]bool{
	"BYTEA":      true,
	"BLOB":       true,
	"TINYBLOB":   true,
	"MEDIUMBLOB": true,
	"LONGBLOB":   true,
	"BINARY":     true,
	"VARBINARY":  true,
}

// scanRecords reads all rows into generic records. Drivers hand back []byte
// for most columns on the text protocol, so values are normalized by database
// type: numeric bytes are parsed, text bytes become strings and only
// genuinely binary columns stay []byte.
func scanRecords(rows *sql.Rows) ([]storage.Record, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}

	var out []storage.Record
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec := make(storage.Record, len(cols))
		for i, col := range cols {
			rec[col] = normalizeValue(vals[i], types[i].DatabaseTypeName())
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func normalizeValue(v any, dbType string) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}

	// Scan into *any hands over driver-owned bytes; copy before the driver
	// reuses the buffer on the next row.
	t := strings.ToUpper(dbType)
	if binaryTypes[t] {
		return append([]byte(nil), b...)
	}

	s := string(b)
	switch t {
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT", "INT2", "INT4", "INT8":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case "FLOAT", "DOUBLE", "DECIMAL", "NUMERIC", "REAL", "FLOAT4", "FLOAT8":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// Error mapping
// ---------------------------------------------------------------------------

// wrap maps driver errors onto the storage sentinels so callers can branch
// with errors.Is instead of importing driver packages.
func (s *Store) wrap(op string, err error) error {
	switch {
	case s.dialect.IsMissingTable(err):
		return fmt.Errorf("%s: %w", op, storage.ErrTableNotFound)
	case isConnErr(err):
		return fmt.Errorf("%s: %w: %v", op, storage.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConnErr(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
