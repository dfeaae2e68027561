package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rantahar/aware-filter/internal/identity"
	"github.com/rantahar/aware-filter/internal/storage"
	"github.com/rantahar/aware-filter/internal/storage/memstore"
)

func lookupStore(t *testing.T, rows []storage.Record) *memstore.Store {
	t.Helper()
	s := memstore.New()
	ctx := context.Background()
	for i, rec := range rows {
		if err := s.Insert(ctx, identity.LookupTable, rec); err != nil {
			t.Fatalf("seed lookup row %d: %v", i, err)
		}
	}
	return s
}

func TestResolve(t *testing.T) {
	s := lookupStore(t, []storage.Record{
		{"id": int64(101), "device_uuid": "dev-a"},
		{"id": int64(102), "device_uuid": "dev-b"},
	})
	r := identity.NewResolver(s)
	ctx := context.Background()

	uid, err := r.Resolve(ctx, "dev-a")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if uid != 101 {
		t.Errorf("uid = %d, want 101", uid)
	}

	if _, err := r.Resolve(ctx, "dev-unknown"); !errors.Is(err, identity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveFirstRowWins(t *testing.T) {
	s := lookupStore(t, []storage.Record{
		{"id": int64(1), "device_uuid": "dup"},
		{"id": int64(2), "device_uuid": "dup"},
	})
	r := identity.NewResolver(s)

	uid, err := r.Resolve(context.Background(), "dup")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if uid != 1 {
		t.Errorf("uid = %d, want the first registration (1)", uid)
	}
}

func TestResolveMissingLookupTable(t *testing.T) {
	r := identity.NewResolver(memstore.New())

	if _, err := r.Resolve(context.Background(), "dev-a"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound without a lookup table, got %v", err)
	}
}

func TestResolveBadLookupRow(t *testing.T) {
	s := lookupStore(t, []storage.Record{
		{"id": "not-a-number", "device_uuid": "dev-a"},
	})
	r := identity.NewResolver(s)

	_, err := r.Resolve(context.Background(), "dev-a")
	if err == nil || errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected a hard error for a non-numeric id, got %v", err)
	}
}

func TestCachedResolverMissNotCached(t *testing.T) {
	s := memstore.New()
	r, err := identity.NewCachedResolver(s, time.Minute)
	if err != nil {
		t.Fatalf("NewCachedResolver: %v", err)
	}
	ctx := context.Background()

	// First lookup misses: no lookup table at all.
	if _, err := r.Resolve(ctx, "late-device"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Register the device after the miss. It must resolve immediately; a
	// cached miss would keep failing for the TTL window.
	if err := s.Insert(ctx, identity.LookupTable, storage.Record{
		"id": int64(7), "device_uuid": "late-device",
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	uid, err := r.Resolve(ctx, "late-device")
	if err != nil {
		t.Fatalf("Resolve after registration: %v", err)
	}
	if uid != 7 {
		t.Errorf("uid = %d, want 7", uid)
	}
}

func TestResolveAll(t *testing.T) {
	s := lookupStore(t, []storage.Record{
		{"id": int64(11), "device_uuid": "dev-a"},
		{"id": int64(12), "device_uuid": "dev-b"},
	})
	r := identity.NewResolver(s)

	uids := r.ResolveAll(context.Background(), []string{"dev-a", "dev-x", "dev-b"})
	if len(uids) != 2 {
		t.Fatalf("expected 2 resolved ids, got %d: %v", len(uids), uids)
	}
	if uids["dev-a"] != 11 || uids["dev-b"] != 12 {
		t.Errorf("unexpected mapping: %v", uids)
	}
	if _, ok := uids["dev-x"]; ok {
		t.Error("unresolvable id should be dropped, not mapped")
	}
}
