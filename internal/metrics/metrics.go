// Package metrics exposes ingestion, detection and feed counters to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "log_sentinel"

// Persistence failure kinds.
const (
	KindLog   = "log"
	KindAlert = "alert"
)

type Metrics struct {
	// Ingestion metrics
	LinesTotal      prometheus.Counter
	LogsByLevel     *prometheus.CounterVec
	SourceAvailable prometheus.Gauge
	ProcessingTime  prometheus.Histogram

	// Detection metrics
	AlertsTotal *prometheus.CounterVec

	// Storage metrics
	PersistFailures *prometheus.CounterVec

	// Live feed metrics
	FeedSubscribers *prometheus.GaugeVec
	FeedMissed      *prometheus.CounterVec

	registry *prometheus.Registry
}

// CreateCustomRegistry returns a registry with the Go runtime, process and
// build info collectors.
func CreateCustomRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(versioncollector.NewCollector(namespace))

	return registry
}

// New creates the metrics on a fresh registry, so several instances can live
// in one process.
func New() *Metrics {
	registry := CreateCustomRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		LinesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_ingested_total",
				Help:      "Total number of log lines read from the source",
			},
		),
		LogsByLevel: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "logs_by_level_total",
				Help:      "Total number of parsed log records by level",
			},
			[]string{"level"},
		),
		SourceAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "source_available",
				Help:      "1 while the log source file is open, 0 while waiting for it",
			},
		),
		ProcessingTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "line_processing_duration_seconds",
				Help:      "Time spent parsing, storing and evaluating one line",
				Buckets:   prometheus.DefBuckets,
			},
		),
		AlertsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_total",
				Help:      "Total number of alerts fired",
			},
			[]string{"rule_id", "severity"},
		),
		PersistFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_failures_total",
				Help:      "Records that could not be written to the store",
			},
			[]string{"kind"},
		),
		FeedSubscribers: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feed_subscribers",
				Help:      "Number of attached live feed subscribers",
			},
			[]string{"view"},
		),
		FeedMissed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_missed_items_total",
				Help:      "Items evicted before a subscriber could read them",
			},
			[]string{"view"},
		),
		registry: registry,
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the exposition format for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrackFunc registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) TrackFunc(name, help string, fn func() float64) {
	promauto.With(m.registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		},
		fn,
	)
}

func (m *Metrics) SubscriberAttached(view string) {
	m.FeedSubscribers.WithLabelValues(view).Inc()
}

func (m *Metrics) SubscriberDetached(view string) {
	m.FeedSubscribers.WithLabelValues(view).Dec()
}

func (m *Metrics) ItemsMissed(view string, n uint64) {
	m.FeedMissed.WithLabelValues(view).Add(float64(n))
}
