package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rantahar/aware-filter/internal/identity"
	"github.com/rantahar/aware-filter/internal/ingest"
	"github.com/rantahar/aware-filter/internal/storage"
)

// ErrNoDevices means none of the requested device ids could be resolved.
var ErrNoDevices = errors.New("no known devices")

// TableMatch is one table holding data for at least one requested device.
// Transformed tables report under their unsuffixed name; a table matched
// through both its original and transformed variant carries both provenance
// values in MatchedBy.
type TableMatch struct {
	Table            string   `json:"table"`
	MatchedBy        []string `json:"matched_by"`
	DeviceIDsMatched []string `json:"device_ids_matched"`
}

// TablesResult is the discovery response.
type TablesResult struct {
	DeviceIDs      []string         `json:"device_ids"`
	DeviceUIDMap   map[string]int64 `json:"device_uid_map"`
	TablesWithData []TableMatch     `json:"tables_with_data"`
	Count          int              `json:"count"`
}

// discoveryDenylist names internal tables never reported by discovery.
var discoveryDenylist = map[string]bool{
	identity.LookupTable: true,
	ingest.IntervalTable: true,
	"schema_migrations":  true,
	"aware_device":       true,
	"aware_log":          true,
	"table_skiplist":     true,
	"schema_index":       true,
}

// mqttTablePrefix excludes broker history tables of any suffix.
const mqttTablePrefix = "mqtt_history"

// TablesForDevices scans the schema for tables holding data for any of the
// requested devices. Original tables are probed by device_id, transformed
// tables by the resolved device_uid values.
//
// The device_id probe is existence-only and cannot tell which of several
// requested ids matched, so it reports all of them; the device_uid probe
// reports the ids that resolved. One probe per table keeps the scan at
// O(tables) queries instead of O(tables * ids).
func (e *Engine) TablesForDevices(ctx context.Context, deviceIDs []string) (*TablesResult, error) {
	uids := e.resolver.ResolveAll(ctx, deviceIDs)
	if len(uids) == 0 {
		return nil, fmt.Errorf("%w: none of %d device ids resolved", ErrNoDevices, len(deviceIDs))
	}

	tables, err := e.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	resolvedIDs := make([]string, 0, len(uids))
	for _, id := range deviceIDs {
		if _, ok := uids[id]; ok {
			resolvedIDs = append(resolvedIDs, id)
		}
	}

	matches := make(map[string]*TableMatch)
	var order []string
	record := func(display, matchedBy string, ids []string) {
		m, ok := matches[display]
		if !ok {
			m = &TableMatch{Table: display}
			matches[display] = m
			order = append(order, display)
		}
		m.MatchedBy = appendUnique(m.MatchedBy, matchedBy)
		for _, id := range ids {
			m.DeviceIDsMatched = appendUnique(m.DeviceIDsMatched, id)
		}
	}

	for _, table := range tables {
		if skipTable(table) {
			continue
		}

		if strings.HasSuffix(table, ingest.TransformedSuffix) {
			matched, err := e.store.Exists(ctx, table, []storage.Cond{deviceUIDCond(uids)})
			if err != nil {
				slog.Warn("device probe failed", "table", table, "error", err)
				continue
			}
			if matched {
				record(strings.TrimSuffix(table, ingest.TransformedSuffix), "device_uid", resolvedIDs)
			}
			continue
		}

		matched, err := e.store.Exists(ctx, table, []storage.Cond{deviceIDCond(deviceIDs)})
		if err != nil {
			slog.Warn("device probe failed", "table", table, "error", err)
			continue
		}
		if matched {
			record(table, "device_id", deviceIDs)
		}
	}

	result := &TablesResult{
		DeviceIDs:      deviceIDs,
		DeviceUIDMap:   uids,
		TablesWithData: make([]TableMatch, 0, len(order)),
		Count:          len(order),
	}
	for _, display := range order {
		result.TablesWithData = append(result.TablesWithData, *matches[display])
	}
	return result, nil
}

func skipTable(name string) bool {
	return discoveryDenylist[name] || strings.HasPrefix(name, mqttTablePrefix)
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}
