package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest service.
type Metrics struct {
	EventsFetched     prometheus.Counter
	EventsIngested    prometheus.Counter
	DuplicatesSkipped prometheus.Counter
	RecordFailures    prometheus.Counter
	FetchFailures     prometheus.Counter

	// Poll cycle metrics.
	CycleDuration    prometheus.Histogram
	SchedulerPolling prometheus.Gauge
	FetchDuration    prometheus.Histogram

	// Geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,timeout,network,malformed,unknown}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "events_fetched_total",
			Help:      "Total event records returned by the upstream feed.",
		}),
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "events_ingested_total",
			Help:      "Total newly observed events persisted to the ledger.",
		}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "duplicates_skipped_total",
			Help:      "Total records skipped because the ledger already had them.",
		}),
		RecordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "record_failures_total",
			Help:      "Total records that failed processing and were skipped.",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "fetch_failures_total",
			Help:      "Total poll cycles that ended early on a feed fetch failure.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_ingest",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete fetch-dedup-enrich-persist cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SchedulerPolling: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quake_ingest",
			Name:      "scheduler_polling",
			Help:      "1 while a poll cycle is in progress, 0 while idle.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_ingest",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "geocode_requests_total",
			Help:      "External reverse-geocode requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quake_ingest",
			Name:      "geocode_cache_total",
			Help:      "Geocode cache lookups by result.",
		}, []string{"result"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quake_ingest",
			Name:      "geocode_duration_seconds",
			Help:      "Reverse-geocode API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}

	prometheus.MustRegister(
		m.EventsFetched,
		m.EventsIngested,
		m.DuplicatesSkipped,
		m.RecordFailures,
		m.FetchFailures,
		m.CycleDuration,
		m.SchedulerPolling,
		m.FetchDuration,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EventsFetched:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_ingest", Name: "events_fetched_total"}),
		EventsIngested:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_ingest", Name: "events_ingested_total"}),
		DuplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_ingest", Name: "duplicates_skipped_total"}),
		RecordFailures:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_ingest", Name: "record_failures_total"}),
		FetchFailures:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "quake_ingest", Name: "fetch_failures_total"}),
		CycleDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_ingest", Name: "cycle_duration_seconds"}),
		SchedulerPolling:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "quake_ingest", Name: "scheduler_polling"}),
		FetchDuration:     prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_ingest", Name: "fetch_duration_seconds"}),
		GeocodeRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_ingest", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "quake_ingest", Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "quake_ingest", Name: "geocode_duration_seconds"}),
	}
}
