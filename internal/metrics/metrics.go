// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns every collector the scraper reports to. Collectors register
// against an explicit registry so tests can inspect them in isolation.
type Metrics struct {
	registry *prometheus.Registry

	UnitsCompleted *prometheus.CounterVec
	UnitsRetried   prometheus.Counter
	UnitsAbandoned prometheus.Counter
	IDsDiscovered  prometheus.Counter
	PagesScraped   prometheus.Counter

	RecordsExtracted prometheus.Counter
	ExtractionErrors *prometheus.CounterVec
	Cooldowns        *prometheus.CounterVec

	RequestDelay prometheus.Histogram
	FrontierSize prometheus.Gauge
	PendingIDs   prometheus.Gauge

	HTTPDuration *prometheus.HistogramVec
}

// New builds and registers the scraper collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		UnitsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_units_completed_total",
			Help: "Search units finished, partitioned by outcome.",
		}, []string{"outcome"}),
		UnitsRetried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_units_retried_total",
			Help: "Search units re-queued after a failure.",
		}),
		UnitsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_units_abandoned_total",
			Help: "Search units dropped after exhausting retries.",
		}),
		IDsDiscovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_ids_discovered_total",
			Help: "New registration IDs recorded.",
		}),
		PagesScraped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_result_pages_total",
			Help: "Search result pages scraped.",
		}),
		RecordsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scraper_records_extracted_total",
			Help: "Practitioner records extracted.",
		}),
		ExtractionErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_extraction_errors_total",
			Help: "Extraction failures partitioned by kind.",
		}, []string{"kind"}),
		Cooldowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_cooldowns_total",
			Help: "Cooldown pauses taken, partitioned by tier.",
		}, []string{"tier"}),
		RequestDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_request_delay_seconds",
			Help:    "Enforced delay before each request.",
			Buckets: []float64{1, 5, 10, 13, 15, 20, 30, 60, 120, 300},
		}),
		FrontierSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_frontier_size",
			Help: "Search units currently queued.",
		}),
		PendingIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_pending_ids",
			Help: "Discovered IDs awaiting extraction.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_http_request_duration_seconds",
			Help:    "Operator API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.UnitsCompleted, m.UnitsRetried, m.UnitsAbandoned, m.IDsDiscovered,
		m.PagesScraped, m.RecordsExtracted, m.ExtractionErrors, m.Cooldowns,
		m.RequestDelay, m.FrontierSize, m.PendingIDs, m.HTTPDuration,
	)
	return m
}

// ObserveHTTPRequest records one operator API request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
