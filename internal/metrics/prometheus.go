package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pert"

type snapshotMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(s *MetricsSnapshot) float64
	labels    []string
}

// Collector exposes the counters of a Metrics instance in Prometheus format.
// Values are read from Snapshot on every scrape, so nothing is counted twice.
type Collector struct {
	m       *Metrics
	metrics []snapshotMetric

	endpointRequests *prometheus.Desc
	endpointErrors   *prometheus.Desc
}

func newDesc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
}

// NewCollector creates a collector for m
func NewCollector(m *Metrics) *Collector {
	requests := newDesc("http_requests_total", "HTTP requests by result.", "result")
	saves := newDesc("preference_saves_total", "Preference saves by result.", "result")
	cacheLookups := newDesc("preference_cache_lookups_total", "Preference cache lookups by result.", "result")
	logins := newDesc("logins_total", "Login attempts by result.", "result")

	return &Collector{
		m: m,
		metrics: []snapshotMetric{
			{requests, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Requests.Successful) }, []string{"success"}},
			{requests, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Requests.Failed) }, []string{"failure"}},
			{newDesc("http_request_latency_avg_ms", "Average HTTP request latency."), prometheus.GaugeValue,
				func(s *MetricsSnapshot) float64 { return s.Requests.AvgLatencyMs }, nil},

			{newDesc("estimates_total", "Estimates computed."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Estimates.Computed) }, nil},
			{newDesc("estimates_non_finite_total", "Estimates with a non-finite result."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Estimates.NonFinite) }, nil},
			{newDesc("input_coercions_total", "Non-numeric fields replaced by zero."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Estimates.Coercions) }, nil},
			{newDesc("input_rejections_total", "Requests rejected in strict input mode."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Estimates.Rejections) }, nil},
			{newDesc("exports_total", "Spreadsheet exports."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Estimates.Exported) }, nil},

			{saves, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Preferences.Saves) }, []string{"success"}},
			{saves, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Preferences.SaveErrors) }, []string{"failure"}},
			{newDesc("preference_loads_total", "Preference reads."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Preferences.Loads) }, nil},
			{newDesc("preference_pending_saves", "Background saves in flight."), prometheus.GaugeValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Preferences.Pending) }, nil},
			{newDesc("preference_dropped_saves_total", "Background saves dropped during shutdown."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Preferences.Dropped) }, nil},
			{newDesc("preference_rate_limited_total", "Save requests rejected by the rate limiter."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Preferences.RateLimited) }, nil},

			{cacheLookups, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Cache.Hits) }, []string{"hit"}},
			{cacheLookups, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Cache.Misses) }, []string{"miss"}},
			{newDesc("preference_cache_errors_total", "Preference cache failures."), prometheus.CounterValue,
				func(s *MetricsSnapshot) float64 { return float64(s.Cache.Errors) }, nil},

			{logins, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Auth.LoginSuccesses) }, []string{"success"}},
			{logins, prometheus.CounterValue, func(s *MetricsSnapshot) float64 { return float64(s.Auth.LoginFailures) }, []string{"failure"}},
		},
		endpointRequests: newDesc("endpoint_requests_total", "Requests per route.", "endpoint"),
		endpointErrors:   newDesc("endpoint_errors_total", "Failed requests per route.", "endpoint"),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	seen := make(map[*prometheus.Desc]bool)
	for _, sm := range c.metrics {
		if !seen[sm.desc] {
			seen[sm.desc] = true
			ch <- sm.desc
		}
	}
	ch <- c.endpointRequests
	ch <- c.endpointErrors
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.m.Snapshot()

	for _, sm := range c.metrics {
		ch <- prometheus.MustNewConstMetric(sm.desc, sm.valueType, sm.value(&snapshot), sm.labels...)
	}

	for endpoint, em := range snapshot.Endpoints {
		ch <- prometheus.MustNewConstMetric(c.endpointRequests, prometheus.CounterValue, float64(em.Requests), endpoint)
		ch <- prometheus.MustNewConstMetric(c.endpointErrors, prometheus.CounterValue, float64(em.Errors), endpoint)
	}
}

// PrometheusHandler serves m and the Go runtime metrics in the Prometheus text format
func PrometheusHandler(m *Metrics) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		NewCollector(m),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
