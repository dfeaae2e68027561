// Package ingest implements the write path: rate limiting of high-frequency
// sample batches and the identity-rewriting record writer.
package ingest

import (
	"context"

	"github.com/rantahar/aware-filter/internal/storage"
)

// DefaultIntervalMicros is the minimum gap between stored samples when a
// table has no entry in the interval table: 200ms, i.e. 5 Hz.
const DefaultIntervalMicros int64 = 200_000

// IntervalTable holds per-table overrides, keyed by table_name with the gap
// in min_interval_us.
const IntervalTable = "sampling_intervals"

// RateLimit downsamples a batch to at most one record per interval. The
// filter is causal: it scans in input order and keeps a record iff nothing
// has been kept yet or the gap to the last kept timestamp is at least the
// interval. Records without a usable timestamp are always kept and do not
// advance the window. Reapplying the filter to its own output changes
// nothing, since surviving gaps are already wide enough.
func RateLimit(records []storage.Record, intervalMicros int64) []storage.Record {
	if intervalMicros <= 0 || len(records) <= 1 {
		return records
	}

	kept := make([]storage.Record, 0, len(records))
	var lastKept int64
	haveLast := false

	for _, rec := range records {
		ts, ok := rec.Timestamp()
		if !ok {
			kept = append(kept, rec)
			continue
		}
		if haveLast && ts-lastKept < intervalMicros {
			continue
		}
		kept = append(kept, rec)
		lastKept = ts
		haveLast = true
	}
	return kept
}

// IntervalFor looks up the table's configured minimum interval, falling back
// to the default when the interval table, the row or a sane value is absent.
func IntervalFor(ctx context.Context, store storage.Store, table string) int64 {
	conds := []storage.Cond{storage.Eq("table_name", table)}
	rows, err := store.Select(ctx, IntervalTable, conds, 1, 0)
	if err != nil || len(rows) == 0 {
		return DefaultIntervalMicros
	}
	if v, ok := storage.AsInt64(rows[0]["min_interval_us"]); ok && v > 0 {
		return v
	}
	return DefaultIntervalMicros
}
