package storage

import (
	"encoding/json"
	"strconv"
)

// Record is one observation: an open mapping of column name to scalar value.
// Values decoded from HTTP bodies are string, bool, nil or json.Number
// (bodies are decoded with UseNumber so device timestamps keep integer
// precision); values read back from SQL add int64, float64 and []byte.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Timestamp returns the record's timestamp column as an integer in the
// device's own clock units. The second return is false when the column is
// absent or not numeric.
func (r Record) Timestamp() (int64, bool) {
	v, ok := r["timestamp"]
	if !ok {
		return 0, false
	}
	return AsInt64(v)
}

// AsInt64 coerces the scalar representations produced by JSON decoding and
// SQL scanning into an int64. Fractional values are truncated toward zero.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(n, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return int64(f), true
		}
	case []byte:
		return AsInt64(string(n))
	}
	return 0, false
}

// AsFloat64 coerces numeric scalar representations into a float64.
func AsFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	case []byte:
		return AsFloat64(string(n))
	}
	return 0, false
}
