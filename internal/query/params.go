// Package query implements the read path: single-table paged reads, the
// merged read across original and transformed tables, and table discovery
// for a set of devices.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rantahar/aware-filter/internal/storage"
)

// Paging bounds. Limits above MaxLimit are rejected, not clamped, so callers
// learn about the ceiling instead of silently losing rows.
const (
	DefaultLimit = 10_000
	MaxLimit     = 50_000
)

// ErrValidation marks malformed client input.
var ErrValidation = errors.New("invalid query")

// Params is the parsed form of a data query.
type Params struct {
	Table     string
	DeviceIDs []string
	Limit     int
	Offset    int
	// Conds holds the time window plus every pass-through column filter.
	// Device conditions are not included; the engine adds the right
	// identity condition per source table.
	Conds []storage.Cond
}

// ParseParams interprets the query string of a data request. Reserved keys
// are table, device_id, start_time, end_time, limit and offset; any other
// key becomes an equality filter, or a set-membership filter when its value
// contains commas.
func ParseParams(values url.Values) (Params, error) {
	p := Params{Limit: DefaultLimit}

	p.Table = values.Get("table")
	if p.Table == "" {
		return Params{}, fmt.Errorf("%w: table is required", ErrValidation)
	}
	if !storage.ValidName(p.Table) {
		return Params{}, fmt.Errorf("%w: invalid table name %q", ErrValidation, p.Table)
	}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: limit must be an integer", ErrValidation)
		}
		p.Limit = n
	}
	if raw := values.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, fmt.Errorf("%w: offset must be an integer", ErrValidation)
		}
		p.Offset = n
	}
	if err := checkPage(p.Limit, p.Offset); err != nil {
		return Params{}, err
	}

	if raw := values.Get("device_id"); raw != "" {
		p.DeviceIDs = splitCSV(raw)
	}

	if raw := values.Get("start_time"); raw != "" {
		p.Conds = append(p.Conds, storage.Gte("timestamp", scalar(raw)))
	}
	if raw := values.Get("end_time"); raw != "" {
		p.Conds = append(p.Conds, storage.Lte("timestamp", scalar(raw)))
	}

	// Remaining keys become column filters, in sorted order so the
	// generated statements are deterministic.
	extras := make([]string, 0, len(values))
	for key := range values {
		switch key {
		case "table", "device_id", "start_time", "end_time", "limit", "offset":
			continue
		}
		extras = append(extras, key)
	}
	sort.Strings(extras)

	for _, key := range extras {
		if !storage.ValidName(key) {
			return Params{}, fmt.Errorf("%w: invalid filter column %q", ErrValidation, key)
		}
		raw := values.Get(key)
		if strings.Contains(raw, ",") {
			parts := splitCSV(raw)
			vals := make([]any, len(parts))
			for i, part := range parts {
				vals[i] = scalar(part)
			}
			p.Conds = append(p.Conds, storage.In(key, vals...))
		} else {
			p.Conds = append(p.Conds, storage.Eq(key, scalar(raw)))
		}
	}

	return p, nil
}

func checkPage(limit, offset int) error {
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	if limit > MaxLimit {
		return fmt.Errorf("%w: limit must not exceed %d", ErrValidation, MaxLimit)
	}
	if offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrValidation)
	}
	return nil
}

// splitCSV splits on commas, trimming whitespace and dropping empties.
func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// scalar converts a query-string value to the type it will be compared
// against: numeric text becomes a number so integer timestamp columns
// compare correctly on both backends, everything else stays a string.
func scalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
