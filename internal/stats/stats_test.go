package stats_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rantahar/aware-filter/internal/stats"
)

func TestRegistryPreRegisteredCounters(t *testing.T) {
	r := stats.NewRegistry()

	snap := r.Snapshot()
	for _, name := range []string{
		stats.TotalRequests,
		stats.SuccessfulInserts,
		stats.FailedInserts,
		stats.UnauthorizedAttempts,
	} {
		v, ok := snap[name]
		if !ok {
			t.Errorf("counter %s missing from a fresh registry", name)
		}
		if v != 0 {
			t.Errorf("counter %s = %d, want 0", name, v)
		}
	}
}

func TestRegistryIncAndGet(t *testing.T) {
	r := stats.NewRegistry()

	r.Inc(stats.TotalRequests)
	r.Inc(stats.TotalRequests)
	r.Inc(stats.SuccessfulInserts)
	if got := r.Get(stats.TotalRequests); got != 2 {
		t.Errorf("total_requests = %d, want 2", got)
	}
	if got := r.Get(stats.SuccessfulInserts); got != 1 {
		t.Errorf("successful_inserts = %d, want 1", got)
	}
	if got := r.Get("never_touched"); got != 0 {
		t.Errorf("absent counter = %d, want 0", got)
	}
}

func TestRegistryMintsCountersOnFirstInc(t *testing.T) {
	r := stats.NewRegistry()

	if _, ok := r.Snapshot()[stats.SuccessfulTransforms]; ok {
		t.Fatal("transform counter should not exist before the first event")
	}
	r.Inc(stats.SuccessfulTransforms)
	if got := r.Get(stats.SuccessfulTransforms); got != 1 {
		t.Errorf("successful_transforms = %d, want 1", got)
	}
	if _, ok := r.Snapshot()[stats.SuccessfulTransforms]; !ok {
		t.Error("minted counter missing from snapshot")
	}
}

func TestRegistryConcurrentInc(t *testing.T) {
	r := stats.NewRegistry()

	const workers = 16
	const perWorker = 500
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				r.Inc(stats.TotalRequests)
				r.Inc("minted_in_flight")
			}
		}()
	}
	wg.Wait()

	if got := r.Get(stats.TotalRequests); got != workers*perWorker {
		t.Errorf("total_requests = %d, want %d", got, workers*perWorker)
	}
	if got := r.Get("minted_in_flight"); got != workers*perWorker {
		t.Errorf("minted_in_flight = %d, want %d", got, workers*perWorker)
	}
}

func TestCollectorExposesCounters(t *testing.T) {
	r := stats.NewRegistry()
	r.Inc(stats.TotalRequests)
	r.Inc(stats.TotalRequests)
	r.Inc(stats.SuccessfulTransforms)

	c := stats.NewCollector(r)
	if n := testutil.CollectAndCount(c, "aware_filter_events_total"); n != 5 {
		t.Errorf("collected %d series, want 5 (4 fixed + 1 minted)", n)
	}

	expected := `
		# HELP aware_filter_events_total Process-wide event counters, labelled by counter name.
		# TYPE aware_filter_events_total counter
		aware_filter_events_total{counter="failed_inserts"} 0
		aware_filter_events_total{counter="successful_inserts"} 0
		aware_filter_events_total{counter="successful_transforms"} 1
		aware_filter_events_total{counter="total_requests"} 2
		aware_filter_events_total{counter="unauthorized_attempts"} 0
	`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "aware_filter_events_total"); err != nil {
		t.Errorf("unexpected exposition: %v", err)
	}
}
