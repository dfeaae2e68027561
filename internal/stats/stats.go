// Package stats maintains the process-wide request and insert counters
// reported by the stats endpoint. Counters reset on restart and tolerate
// the races inherent in concurrent handlers; they are operational telemetry,
// not an audit log.
package stats

import (
	"sync"
	"sync/atomic"
)

// Counter names. Inc accepts arbitrary names, so call sites may also mint
// new counters on first use.
const (
	TotalRequests          = "total_requests"
	SuccessfulInserts      = "successful_inserts"
	FailedInserts          = "failed_inserts"
	UnauthorizedAttempts   = "unauthorized_attempts"
	SuccessfulTransforms   = "successful_transforms"
	TransformationFailures = "transformation_failures"
)

// Registry is a set of named atomic counters, safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
}

// NewRegistry creates a Registry with the fixed counters pre-registered so
// they show up as zeros before the first event.
func NewRegistry() *Registry {
	r := &Registry{counters: make(map[string]*atomic.Int64)}
	for _, name := range []string{
		TotalRequests,
		SuccessfulInserts,
		FailedInserts,
		UnauthorizedAttempts,
	} {
		r.counters[name] = &atomic.Int64{}
	}
	return r
}

// Inc adds one to the named counter, creating it if needed.
func (r *Registry) Inc(name string) {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		c, ok = r.counters[name]
		if !ok {
			c = &atomic.Int64{}
			r.counters[name] = c
		}
		r.mu.Unlock()
	}
	c.Add(1)
}

// Get returns the current value of the named counter (0 when absent).
func (r *Registry) Get(name string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.counters[name]; ok {
		return c.Load()
	}
	return 0
}

// Snapshot returns a copy of every counter's current value.
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c.Load()
	}
	return out
}
