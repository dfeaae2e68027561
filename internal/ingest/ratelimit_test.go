package ingest_test

import (
	"context"
	"testing"

	"github.com/rantahar/aware-filter/internal/ingest"
	"github.com/rantahar/aware-filter/internal/storage"
	"github.com/rantahar/aware-filter/internal/storage/memstore"
)

func recs(timestamps ...int64) []storage.Record {
	out := make([]storage.Record, len(timestamps))
	for i, ts := range timestamps {
		out[i] = storage.Record{"timestamp": ts, "n": int64(i)}
	}
	return out
}

func keptTimestamps(records []storage.Record) []int64 {
	out := make([]int64, 0, len(records))
	for _, rec := range records {
		if ts, ok := rec.Timestamp(); ok {
			out = append(out, ts)
		}
	}
	return out
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		in       []storage.Record
		interval int64
		want     []int64
	}{
		{
			name:     "burst above the cap keeps only the first",
			in:       recs(0, 40_000, 80_000, 120_000, 160_000),
			interval: 200_000,
			want:     []int64{0},
		},
		{
			name:     "spacing above the cap keeps everything",
			in:       recs(0, 250_000, 500_000, 750_000),
			interval: 200_000,
			want:     []int64{0, 250_000, 500_000, 750_000},
		},
		{
			name:     "gap exactly the interval is kept",
			in:       recs(0, 200_000, 399_999),
			interval: 200_000,
			want:     []int64{0, 200_000},
		},
		{
			name:     "window anchors to last kept, not last seen",
			in:       recs(0, 150_000, 210_000),
			interval: 200_000,
			want:     []int64{0, 210_000},
		},
		{
			name:     "zero interval disables filtering",
			in:       recs(0, 1, 2),
			interval: 0,
			want:     []int64{0, 1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := keptTimestamps(ingest.RateLimit(tt.in, tt.interval))
			if len(got) != len(tt.want) {
				t.Fatalf("kept %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("kept %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestRateLimitSingleRecordBypasses(t *testing.T) {
	in := recs(0)
	out := ingest.RateLimit(in, 1)
	if len(out) != 1 {
		t.Fatalf("single record must pass through, got %d records", len(out))
	}
}

func TestRateLimitMissingTimestamps(t *testing.T) {
	in := []storage.Record{
		{"timestamp": int64(0), "n": int64(0)},
		{"n": int64(1)}, // no timestamp: always kept
		{"timestamp": int64(50_000), "n": int64(2)},
		{"timestamp": int64(250_000), "n": int64(3)},
	}

	out := ingest.RateLimit(in, 200_000)
	if len(out) != 3 {
		t.Fatalf("expected 3 kept records, got %d", len(out))
	}
	// The timestamp-less record survives and does not advance the window,
	// so 50000 is still judged against 0.
	if _, ok := out[1].Timestamp(); ok {
		t.Errorf("second kept record should be the timestamp-less one: %v", out[1])
	}
	if ts, _ := out[2].Timestamp(); ts != 250_000 {
		t.Errorf("expected 250000 as the next kept timestamp, got %d", ts)
	}
}

func TestRateLimitIdempotent(t *testing.T) {
	in := recs(0, 40_000, 220_000, 260_000, 470_000)

	once := ingest.RateLimit(in, 200_000)
	twice := ingest.RateLimit(once, 200_000)
	if len(once) != len(twice) {
		t.Fatalf("second pass changed the batch: %d -> %d records", len(once), len(twice))
	}
	a, b := keptTimestamps(once), keptTimestamps(twice)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("second pass changed timestamps: %v -> %v", a, b)
		}
	}
}

func TestIntervalFor(t *testing.T) {
	ctx := context.Background()

	t.Run("no interval table falls back to default", func(t *testing.T) {
		got := ingest.IntervalFor(ctx, memstore.New(), "screen")
		if got != ingest.DefaultIntervalMicros {
			t.Errorf("interval = %d, want default %d", got, ingest.DefaultIntervalMicros)
		}
	})

	t.Run("configured row wins", func(t *testing.T) {
		s := memstore.New()
		if err := s.Insert(ctx, ingest.IntervalTable, storage.Record{
			"table_name": "screen", "min_interval_us": int64(1_000_000),
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if got := ingest.IntervalFor(ctx, s, "screen"); got != 1_000_000 {
			t.Errorf("interval = %d, want 1000000", got)
		}
		// Other tables still get the default.
		if got := ingest.IntervalFor(ctx, s, "battery"); got != ingest.DefaultIntervalMicros {
			t.Errorf("interval = %d, want default %d", got, ingest.DefaultIntervalMicros)
		}
	})

	t.Run("non-positive or broken values fall back", func(t *testing.T) {
		s := memstore.New()
		seed := []storage.Record{
			{"table_name": "zeroed", "min_interval_us": int64(0)},
			{"table_name": "mangled", "min_interval_us": "soon"},
		}
		for _, rec := range seed {
			if err := s.Insert(ctx, ingest.IntervalTable, rec); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
		if got := ingest.IntervalFor(ctx, s, "zeroed"); got != ingest.DefaultIntervalMicros {
			t.Errorf("zeroed interval = %d, want default", got)
		}
		if got := ingest.IntervalFor(ctx, s, "mangled"); got != ingest.DefaultIntervalMicros {
			t.Errorf("mangled interval = %d, want default", got)
		}
	})
}
