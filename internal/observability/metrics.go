package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingest pipeline.
type Metrics struct {
	ListingPages  prometheus.Counter
	PagesFetched  prometheus.Counter
	FetchErrors   prometheus.Counter
	RecordsParsed prometheus.Counter

	RecordsRejected *prometheus.CounterVec // labels: stage={fetch,parse,normalize}

	AuditVersions   prometheus.Counter
	DedupUnchanged  prometheus.Counter
	CurrentViewSize prometheus.Gauge

	PipelineRunning prometheus.Gauge
	FlushDuration   prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ListingPages,
		m.PagesFetched,
		m.FetchErrors,
		m.RecordsParsed,
		m.RecordsRejected,
		m.AuditVersions,
		m.DedupUnchanged,
		m.CurrentViewSize,
		m.PipelineRunning,
		m.FlushDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, so
// parallel tests don't hit "already registered" panics.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ListingPages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avy_ingest",
			Name:      "listing_pages_total",
			Help:      "Total listing pages walked.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avy_ingest",
			Name:      "pages_fetched_total",
			Help:      "Total record pages fetched successfully.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avy_ingest",
			Name:      "fetch_errors_total",
			Help:      "Total permanently failed fetches.",
		}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avy_ingest",
			Name:      "records_parsed_total",
			Help:      "Total pages parsed and normalized into observations.",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avy_ingest",
			Name:      "records_rejected_total",
			Help:      "Records routed to the rejection log, by stage.",
		}, []string{"stage"}),
		AuditVersions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avy_ingest",
			Name:      "audit_versions_total",
			Help:      "Versions appended to the audit trail.",
		}),
		DedupUnchanged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avy_ingest",
			Name:      "dedup_unchanged_total",
			Help:      "Re-fetches whose content hash matched the current version.",
		}),
		CurrentViewSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avy_ingest",
			Name:      "current_view_size",
			Help:      "Distinct identity keys in the current view.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "avy_ingest",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avy_ingest",
			Name:      "flush_duration_seconds",
			Help:      "Duration of a sink flush.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
	}
}
