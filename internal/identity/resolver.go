// Package identity resolves client-supplied device identifiers to the
// internal surrogate ids held in the device_lookup table.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/rantahar/aware-filter/internal/storage"
)

// LookupTable maps external device identifiers (device_uuid) to surrogate
// ids (id). It is written by device registration, which lives outside this
// service; the resolver only reads it.
const LookupTable = "device_lookup"

// ErrNotFound means the device identifier has no lookup row.
var ErrNotFound = errors.New("device not found")

// Resolver performs point lookups against the lookup table. With a cache
// configured, successful resolutions are reused for the TTL window; misses
// are never cached, so a device registered after a failed lookup resolves on
// the very next call.
type Resolver struct {
	store storage.Store
	cache *ristretto.Cache
	ttl   time.Duration
}

// NewResolver creates an uncached Resolver: every call costs one query.
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// NewCachedResolver creates a Resolver that caches successful lookups for ttl.
func NewCachedResolver(store storage.Store, ttl time.Duration) (*Resolver, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("resolver cache: %w", err)
	}
	return &Resolver{store: store, cache: cache, ttl: ttl}, nil
}

// Resolve returns the surrogate id for deviceID, or ErrNotFound when no
// lookup row matches. With duplicate registrations the first row wins.
func (r *Resolver) Resolve(ctx context.Context, deviceID string) (int64, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(deviceID); ok {
			if uid, ok := v.(int64); ok {
				return uid, nil
			}
		}
	}

	conds := []storage.Cond{storage.Eq("device_uuid", deviceID)}
	rows, err := r.store.Select(ctx, LookupTable, conds, 1, 0)
	switch {
	case errors.Is(err, storage.ErrTableNotFound):
		// A deployment without a lookup table has no registered devices.
		return 0, ErrNotFound
	case err != nil:
		return 0, fmt.Errorf("resolve %s: %w", deviceID, err)
	}
	if len(rows) == 0 {
		return 0, ErrNotFound
	}

	uid, ok := storage.AsInt64(rows[0]["id"])
	if !ok {
		return 0, fmt.Errorf("resolve %s: lookup row has no numeric id", deviceID)
	}

	if r.cache != nil {
		r.cache.SetWithTTL(deviceID, uid, 1, r.ttl)
	}
	return uid, nil
}

// ResolveAll resolves a batch of ids and returns only the successful ones.
// Lookup misses are expected; other failures are logged and likewise
// dropped, favouring partial results over a failed read.
func (r *Resolver) ResolveAll(ctx context.Context, deviceIDs []string) map[string]int64 {
	uids := make(map[string]int64, len(deviceIDs))
	for _, id := range deviceIDs {
		uid, err := r.Resolve(ctx, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				slog.Warn("device resolution failed", "device_id", id, "error", err)
			}
			continue
		}
		uids[id] = uid
	}
	return uids
}
