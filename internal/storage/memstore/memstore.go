// Package memstore provides an in-memory Store used for development and
// tests. Tables spring into existence on first insert; reads against a table
// that was never written fail with storage.ErrTableNotFound, matching the
// behaviour of the SQL backend.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rantahar/aware-filter/internal/storage"
)

// Store keeps every table as an ordered slice of records. Records are copied
// on the way in and on the way out so callers can never alias internal state.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]storage.Record
}

// New creates an empty Store.
func New() *Store {
	return &Store{tables: make(map[string][]storage.Record)}
}

// CreateTable registers an empty table so existence probes succeed before any
// record is written. Creating a table that already exists is a no-op.
func (s *Store) CreateTable(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tables[name]; !ok {
		s.tables[name] = []storage.Record{}
	}
}

// Insert appends one record, creating the table if needed.
func (s *Store) Insert(_ context.Context, table string, rec storage.Record) error {
	if !storage.ValidName(table) {
		return fmt.Errorf("insert: invalid table name %q", table)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[table] = append(s.tables[table], rec.Clone())
	return nil
}

// Select returns matching records in insertion order.
func (s *Store) Select(_ context.Context, table string, conds []storage.Cond, limit, offset int) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return nil, fmt.Errorf("select %s: %w", table, storage.ErrTableNotFound)
	}

	var out []storage.Record
	skipped := 0
	for _, rec := range rows {
		if !matches(rec, conds) {
			continue
		}
		if limit >= 0 && skipped < offset {
			skipped++
			continue
		}
		if limit >= 0 && len(out) >= limit {
			break
		}
		out = append(out, rec.Clone())
	}
	return out, nil
}

// Count returns the size of the full matching set.
func (s *Store) Count(_ context.Context, table string, conds []storage.Cond) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return 0, fmt.Errorf("count %s: %w", table, storage.ErrTableNotFound)
	}

	n := 0
	for _, rec := range rows {
		if matches(rec, conds) {
			n++
		}
	}
	return n, nil
}

// Exists reports whether any record matches all conditions.
func (s *Store) Exists(_ context.Context, table string, conds []storage.Cond) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.tables[table]
	if !ok {
		return false, fmt.Errorf("exists %s: %w", table, storage.ErrTableNotFound)
	}

	for _, rec := range rows {
		if matches(rec, conds) {
			return true, nil
		}
	}
	return false, nil
}

// TableExists reports whether the named table has been created.
func (s *Store) TableExists(_ context.Context, table string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tables[table]
	return ok, nil
}

// ListTables returns all table names, sorted.
func (s *Store) ListTables(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error {
	return nil
}

// ---------------------------------------------------------------------------
// Condition evaluation
// ---------------------------------------------------------------------------

func matches(rec storage.Record, conds []storage.Cond) bool {
	for _, c := range conds {
		v, ok := rec[c.Column]
		if !ok {
			return false
		}

		switch c.Op {
		case storage.OpEq:
			if len(c.Values) != 1 || !equalValues(v, c.Values[0]) {
				return false
			}
		case storage.OpGte:
			cmp, ok := compareValues(v, firstValue(c))
			if !ok || cmp < 0 {
				return false
			}
		case storage.OpLte:
			cmp, ok := compareValues(v, firstValue(c))
			if !ok || cmp > 0 {
				return false
			}
		case storage.OpIn:
			found := false
			for _, want := range c.Values {
				if equalValues(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func firstValue(c storage.Cond) any {
	if len(c.Values) == 0 {
		return nil
	}
	return c.Values[0]
}

// equalValues compares two scalars the way a loosely typed SQL comparison
// would: numerics compare by value regardless of representation, everything
// else by string form.
func equalValues(a, b any) bool {
	if af, ok := storage.AsFloat64(a); ok {
		if bf, ok := storage.AsFloat64(b); ok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

// compareValues orders two scalars numerically when both coerce to numbers,
// lexically otherwise.
func compareValues(a, b any) (int, bool) {
	if b == nil {
		return 0, false
	}
	af, aok := storage.AsFloat64(a)
	bf, bok := storage.AsFloat64(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	return strings.Compare(stringify(a), stringify(b)), true
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case json.Number:
		return s.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
