package query_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rantahar/aware-filter/internal/query"
	"github.com/rantahar/aware-filter/internal/storage"
	"github.com/rantahar/aware-filter/internal/storage/memstore"
)

func matchFor(res *query.TablesResult, table string) *query.TableMatch {
	for i := range res.TablesWithData {
		if res.TablesWithData[i].Table == table {
			return &res.TablesWithData[i]
		}
	}
	return nil
}

func TestTablesForDevices(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	seedLookup(t, mem, "dev-a", 42)

	seedRows(t, mem, "screen", storage.Record{"device_id": "dev-a", "timestamp": int64(1)})
	seedRows(t, mem, "battery", storage.Record{"device_id": "dev-other", "timestamp": int64(1)})
	// Internal tables never surface, even with matching rows.
	seedRows(t, mem, "aware_device", storage.Record{"device_id": "dev-a"})
	seedRows(t, mem, "mqtt_history", storage.Record{"device_id": "dev-a", "topic": "t"})

	e := newEngine(mem, 0)
	res, err := e.TablesForDevices(ctx, []string{"dev-a"})
	if err != nil {
		t.Fatalf("TablesForDevices: %v", err)
	}

	if res.Count != 1 || len(res.TablesWithData) != 1 {
		t.Fatalf("matched tables = %+v, want only screen", res.TablesWithData)
	}
	m := matchFor(res, "screen")
	if m == nil {
		t.Fatalf("screen missing from %+v", res.TablesWithData)
	}
	if !reflect.DeepEqual(m.MatchedBy, []string{"device_id"}) {
		t.Errorf("matched_by = %v, want [device_id]", m.MatchedBy)
	}
	if !reflect.DeepEqual(m.DeviceIDsMatched, []string{"dev-a"}) {
		t.Errorf("device_ids_matched = %v, want [dev-a]", m.DeviceIDsMatched)
	}
	if res.DeviceUIDMap["dev-a"] != 42 {
		t.Errorf("device_uid_map = %v, want dev-a -> 42", res.DeviceUIDMap)
	}
}

func TestTablesForDevicesTransformedOnly(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	seedLookup(t, mem, "dev-a", 42)
	seedRows(t, mem, "screen_transformed", storage.Record{"device_uid": int64(42), "timestamp": int64(1)})

	e := newEngine(mem, 0)
	res, err := e.TablesForDevices(ctx, []string{"dev-a"})
	if err != nil {
		t.Fatalf("TablesForDevices: %v", err)
	}

	// Transformed tables report under their display name.
	m := matchFor(res, "screen")
	if m == nil {
		t.Fatalf("screen missing from %+v", res.TablesWithData)
	}
	if matchFor(res, "screen_transformed") != nil {
		t.Errorf("suffixed name leaked into results: %+v", res.TablesWithData)
	}
	if !reflect.DeepEqual(m.MatchedBy, []string{"device_uid"}) {
		t.Errorf("matched_by = %v, want [device_uid]", m.MatchedBy)
	}
}

func TestTablesForDevicesMergesVariants(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	seedLookup(t, mem, "dev-a", 42)
	seedRows(t, mem, "screen", storage.Record{"device_id": "dev-a", "timestamp": int64(1)})
	seedRows(t, mem, "screen_transformed", storage.Record{"device_uid": int64(42), "timestamp": int64(2)})

	e := newEngine(mem, 0)
	res, err := e.TablesForDevices(ctx, []string{"dev-a"})
	if err != nil {
		t.Fatalf("TablesForDevices: %v", err)
	}

	if res.Count != 1 {
		t.Fatalf("count = %d, want one merged entry, got %+v", res.Count, res.TablesWithData)
	}
	m := matchFor(res, "screen")
	if m == nil {
		t.Fatalf("screen missing from %+v", res.TablesWithData)
	}
	if !reflect.DeepEqual(m.MatchedBy, []string{"device_id", "device_uid"}) {
		t.Errorf("matched_by = %v, want both provenances", m.MatchedBy)
	}
	if !reflect.DeepEqual(m.DeviceIDsMatched, []string{"dev-a"}) {
		t.Errorf("device_ids_matched = %v, want [dev-a] once", m.DeviceIDsMatched)
	}
}

func TestTablesForDevicesPartialResolution(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	seedLookup(t, mem, "dev-a", 42)
	seedRows(t, mem, "screen",
		storage.Record{"device_id": "dev-a", "timestamp": int64(1)},
		storage.Record{"device_id": "dev-b", "timestamp": int64(2)},
	)
	seedRows(t, mem, "screen_transformed", storage.Record{"device_uid": int64(42), "timestamp": int64(3)})

	e := newEngine(mem, 0)
	ids := []string{"dev-a", "dev-b"}
	res, err := e.TablesForDevices(ctx, ids)
	if err != nil {
		t.Fatalf("one resolvable id is enough: %v", err)
	}

	if !reflect.DeepEqual(res.DeviceIDs, ids) {
		t.Errorf("device_ids = %v, want the request echoed back", res.DeviceIDs)
	}
	if len(res.DeviceUIDMap) != 1 || res.DeviceUIDMap["dev-a"] != 42 {
		t.Errorf("device_uid_map = %v, want only dev-a", res.DeviceUIDMap)
	}
	m := matchFor(res, "screen")
	if m == nil {
		t.Fatalf("screen missing from %+v", res.TablesWithData)
	}
	// The device_id probe is existence-only, so it attributes all
	// requested ids; the resolved id arrives via the device_uid probe
	// without duplication.
	if !reflect.DeepEqual(m.DeviceIDsMatched, ids) {
		t.Errorf("device_ids_matched = %v, want %v", m.DeviceIDsMatched, ids)
	}
}

func TestTablesForDevicesNoneResolve(t *testing.T) {
	mem := memstore.New()
	seedRows(t, mem, "screen", storage.Record{"device_id": "ghost", "timestamp": int64(1)})

	e := newEngine(mem, 0)
	_, err := e.TablesForDevices(context.Background(), []string{"ghost", "phantom"})
	if !errors.Is(err, query.ErrNoDevices) {
		t.Fatalf("err = %v, want ErrNoDevices", err)
	}
}
