package stats

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a Registry to Prometheus scrapes. The registry stays the
// single source of truth; the collector reads a snapshot per scrape instead
// of double-counting into separate metrics.
type Collector struct {
	registry *Registry
	desc     *prometheus.Desc
}

// NewCollector wraps the registry for prometheus.MustRegister.
func NewCollector(r *Registry) *Collector {
	return &Collector{
		registry: r,
		desc: prometheus.NewDesc(
			"aware_filter_events_total",
			"Process-wide event counters, labelled by counter name.",
			[]string{"counter"},
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, v := range c.registry.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(v), name)
	}
}
