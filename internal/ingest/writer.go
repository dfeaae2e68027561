package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rantahar/aware-filter/internal/identity"
	"github.com/rantahar/aware-filter/internal/stats"
	"github.com/rantahar/aware-filter/internal/storage"
)

// TransformedSuffix names the parallel table that stores records with the
// client device_id replaced by the internal device_uid.
const TransformedSuffix = "_transformed"

// Writer stores incoming records, rewriting device identity into the
// transformed table when one exists. Exactly one physical row is written per
// record: the transformed table when the rewrite succeeds end to end, the
// original table otherwise.
type Writer struct {
	store    storage.Store
	resolver *identity.Resolver
	stats    *stats.Registry
}

// NewWriter creates a Writer over the given store, resolver and counters.
func NewWriter(store storage.Store, resolver *identity.Resolver, st *stats.Registry) *Writer {
	return &Writer{store: store, resolver: resolver, stats: st}
}

// BatchResult reports how many records of a batch were stored and how many
// ultimately failed.
type BatchResult struct {
	Inserted int `json:"inserted"`
	Errors   int `json:"errors"`
}

// InsertBatch rate-limits the batch, then writes each surviving record
// independently. One record's failure never aborts the rest; the result
// carries counts, not errors.
func (w *Writer) InsertBatch(ctx context.Context, table string, records []storage.Record) BatchResult {
	interval := IntervalFor(ctx, w.store, table)
	kept := RateLimit(records, interval)
	if dropped := len(records) - len(kept); dropped > 0 {
		slog.Debug("rate limited batch",
			"table", table,
			"received", len(records),
			"dropped", dropped,
			"interval_us", interval,
		)
	}

	probes := newProbeCache(w.store)
	var res BatchResult
	for _, rec := range kept {
		if err := w.writeRecord(ctx, table, rec, probes); err != nil {
			slog.Error("record insert failed", "table", table, "error", err)
			w.stats.Inc(stats.FailedInserts)
			res.Errors++
			continue
		}
		w.stats.Inc(stats.SuccessfulInserts)
		res.Inserted++
	}
	return res
}

// InsertOne writes a single record. Rate limiting does not apply to
// non-batch submissions.
func (w *Writer) InsertOne(ctx context.Context, table string, rec storage.Record) error {
	if err := w.writeRecord(ctx, table, rec, newProbeCache(w.store)); err != nil {
		w.stats.Inc(stats.FailedInserts)
		return err
	}
	w.stats.Inc(stats.SuccessfulInserts)
	return nil
}

// writeRecord implements the per-record decision chain: try the identity
// rewrite when the record carries a device_id, fall back to a verbatim write
// into the original table otherwise or on any transformation failure.
func (w *Writer) writeRecord(ctx context.Context, table string, rec storage.Record, probes *probeCache) error {
	if _, ok := rec["device_id"]; ok && w.tryTransform(ctx, table, rec, probes) {
		return nil
	}
	if err := w.store.Insert(ctx, table, rec); err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	return nil
}

// tryTransform reports whether the record landed in the transformed table.
// Every failure path returns false so the caller falls back; the original
// table is never written here, which keeps the one-row-per-record invariant.
func (w *Writer) tryTransform(ctx context.Context, table string, rec storage.Record, probes *probeCache) bool {
	transformed := table + TransformedSuffix
	if !probes.exists(ctx, transformed) {
		// No transformed counterpart. Not a failure, the original table
		// is simply the only target.
		return false
	}

	deviceID, ok := deviceIDString(rec["device_id"])
	if !ok {
		slog.Warn("device_id is not a string, skipping transform", "table", table)
		w.stats.Inc(stats.TransformationFailures)
		return false
	}

	uid, err := w.resolver.Resolve(ctx, deviceID)
	if err != nil {
		slog.Warn("device resolution failed, falling back to original table",
			"table", table,
			"device_id", deviceID,
			"error", err,
		)
		w.stats.Inc(stats.TransformationFailures)
		return false
	}

	out := make(storage.Record, len(rec))
	for k, v := range rec {
		if k == "device_id" {
			continue
		}
		out[k] = v
	}
	out["device_uid"] = uid

	if err := w.store.Insert(ctx, transformed, out); err != nil {
		slog.Warn("transformed write failed, falling back to original table",
			"table", transformed,
			"error", err,
		)
		w.stats.Inc(stats.TransformationFailures)
		return false
	}

	w.stats.Inc(stats.SuccessfulTransforms)
	return true
}

func deviceIDString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	case []byte:
		return string(s), true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Existence probes
// ---------------------------------------------------------------------------

// probeCache memoizes transformed-table existence for the duration of one
// batch: a thousand-record batch costs one probe, not a thousand. The memo
// does not outlive the call, so tables created between requests are picked
// up.
type probeCache struct {
	store storage.Store
	known map[string]bool
}

func newProbeCache(store storage.Store) *probeCache {
	return &probeCache{store: store, known: make(map[string]bool)}
}

func (p *probeCache) exists(ctx context.Context, table string) bool {
	if v, ok := p.known[table]; ok {
		return v
	}
	exists, err := p.store.TableExists(ctx, table)
	if err != nil {
		// Unknown is treated as absent; the fallback write surfaces any
		// real connectivity problem.
		slog.Warn("table probe failed", "table", table, "error", err)
		exists = false
	}
	p.known[table] = exists
	return exists
}
