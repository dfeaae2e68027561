package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rantahar/aware-filter/internal/identity"
	"github.com/rantahar/aware-filter/internal/ingest"
	"github.com/rantahar/aware-filter/internal/storage"
)

// WarnLargeTotal is the matching-set size above which responses carry a
// warning nudging the caller toward narrower filters.
const WarnLargeTotal = 100_000

// Result is the JSON body returned by the data endpoints.
type Result struct {
	Data                 []storage.Record `json:"data"`
	Count                int              `json:"count"`
	TotalCount           int              `json:"total_count"`
	Limit                int              `json:"limit"`
	Offset               int              `json:"offset"`
	HasMore              bool             `json:"has_more"`
	Warnings             []string         `json:"warnings,omitempty"`
	QueryDurationSeconds float64          `json:"query_duration_seconds"`
}

// Engine executes table reads. A merged read materializes both sources in
// memory before paging, so the engine carries a per-source fetch cap as its
// scalability stop.
type Engine struct {
	store    storage.Store
	resolver *identity.Resolver
	fetchCap int
}

// NewEngine creates an Engine. fetchCap bounds how many rows a single source
// table may contribute to a merged read; values below 1 fall back to a
// generous default.
func NewEngine(store storage.Store, resolver *identity.Resolver, fetchCap int) *Engine {
	if fetchCap < 1 {
		fetchCap = 200_000
	}
	return &Engine{store: store, resolver: resolver, fetchCap: fetchCap}
}

// QueryTable runs a filtered, paged read against one table. The total count
// comes from a separate query over identical conditions, so page and total
// stay consistent.
func (e *Engine) QueryTable(ctx context.Context, table string, conds []storage.Cond, limit, offset int) (*Result, error) {
	if err := checkPage(limit, offset); err != nil {
		return nil, err
	}
	if !storage.ValidName(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrValidation, table)
	}

	total, err := e.store.Count(ctx, table, conds)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.Select(ctx, table, conds, limit, offset)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []storage.Record{}
	}

	res := &Result{
		Data:       rows,
		Count:      len(rows),
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    offset+len(rows) < total,
	}
	res.Warnings = appendSizeWarning(res.Warnings, total)
	return res, nil
}

// QueryData is the merged read behind the data endpoint. With a device
// filter the original table is queried by device_id and, for the ids that
// have lookup rows, the transformed counterpart is queried by device_uid;
// both row sets are concatenated, sorted by timestamp and paged as one.
// Paging cannot be pushed into either source because matching rows are split
// across two tables with different identity columns.
//
// The original table is the primary source and its failure fails the whole
// read. The transformed table is secondary: a missing table is normal and a
// read failure degrades to original-table rows plus a warning.
func (e *Engine) QueryData(ctx context.Context, p Params) (*Result, error) {
	if err := checkPage(p.Limit, p.Offset); err != nil {
		return nil, err
	}

	origConds := p.Conds
	if len(p.DeviceIDs) > 0 {
		origConds = append(copyConds(p.Conds), deviceIDCond(p.DeviceIDs))
	}

	merged, truncated, err := e.fetchAll(ctx, p.Table, origConds)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if truncated {
		warnings = append(warnings, truncWarning(p.Table, e.fetchCap))
	}

	if len(p.DeviceIDs) > 0 {
		uids := e.resolver.ResolveAll(ctx, p.DeviceIDs)
		if len(uids) > 0 {
			ttable := p.Table + ingest.TransformedSuffix
			tconds := append(copyConds(p.Conds), deviceUIDCond(uids))
			trows, ttrunc, terr := e.fetchAll(ctx, ttable, tconds)
			switch {
			case errors.Is(terr, storage.ErrTableNotFound):
				// No transformed counterpart; nothing to merge.
			case terr != nil:
				slog.Warn("transformed table read failed", "table", ttable, "error", terr)
				warnings = append(warnings, fmt.Sprintf("could not read %s; results may be incomplete", ttable))
			default:
				merged = append(merged, trows...)
				if ttrunc {
					warnings = append(warnings, truncWarning(ttable, e.fetchCap))
				}
			}
		}
	}

	sortByTimestamp(merged)

	total := len(merged)
	start := min(p.Offset, total)
	end := min(start+p.Limit, total)
	page := merged[start:end]
	if page == nil {
		page = []storage.Record{}
	}

	res := &Result{
		Data:       page,
		Count:      len(page),
		TotalCount: total,
		Limit:      p.Limit,
		Offset:     p.Offset,
		HasMore:    p.Offset+len(page) < total,
		Warnings:   warnings,
	}
	res.Warnings = appendSizeWarning(res.Warnings, total)
	return res, nil
}

// fetchAll reads every matching row up to the fetch cap, reporting whether
// the set was truncated.
func (e *Engine) fetchAll(ctx context.Context, table string, conds []storage.Cond) ([]storage.Record, bool, error) {
	rows, err := e.store.Select(ctx, table, conds, e.fetchCap+1, 0)
	if err != nil {
		return nil, false, err
	}
	if len(rows) > e.fetchCap {
		return rows[:e.fetchCap], true, nil
	}
	return rows, false, nil
}

func copyConds(conds []storage.Cond) []storage.Cond {
	return append(make([]storage.Cond, 0, len(conds)+1), conds...)
}

// deviceIDCond filters an original table by the client-supplied ids.
func deviceIDCond(ids []string) storage.Cond {
	if len(ids) == 1 {
		return storage.Eq("device_id", ids[0])
	}
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return storage.In("device_id", vals...)
}

// deviceUIDCond filters a transformed table by resolved surrogate ids,
// deduplicated and sorted for stable statement text.
func deviceUIDCond(uids map[string]int64) storage.Cond {
	seen := make(map[int64]bool, len(uids))
	vals := make([]int64, 0, len(uids))
	for _, uid := range uids {
		if !seen[uid] {
			seen[uid] = true
			vals = append(vals, uid)
		}
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	if len(vals) == 1 {
		return storage.Eq("device_uid", vals[0])
	}
	anyVals := make([]any, len(vals))
	for i, v := range vals {
		anyVals[i] = v
	}
	return storage.In("device_uid", anyVals...)
}

// sortByTimestamp orders records ascending by their timestamp column.
// Records without one sort first; the sort is stable, so rows with equal
// timestamps and timestamp-less rows keep their source order.
func sortByTimestamp(records []storage.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, _ := records[i].Timestamp()
		tj, _ := records[j].Timestamp()
		return ti < tj
	})
}

func truncWarning(table string, n int) string {
	return fmt.Sprintf("%s: result set truncated at %d rows; narrow the time window or filters", table, n)
}

func appendSizeWarning(warnings []string, total int) []string {
	if total > WarnLargeTotal {
		warnings = append(warnings, fmt.Sprintf("large result set (%d matching rows); use pagination and narrower filters", total))
	}
	return warnings
}
