package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geosphere_warnings"

// Refresh outcome label values.
const (
	OutcomeSuccess    = "success"
	OutcomeTransport  = "transport_error"
	OutcomeTimeout    = "timeout"
	OutcomeUnexpected = "unexpected_error"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the warning service.
type Metrics struct {
	Refreshes          *prometheus.CounterVec // labels: outcome={success,transport_error,timeout,unexpected_error}
	RefreshesCoalesced prometheus.Counter
	RefreshWaiters     prometheus.Gauge
	FetchDuration      prometheus.Histogram
	ActiveWarnings     prometheus.Gauge
	LastSuccess        prometheus.Gauge
	CoordinatorRunning prometheus.Gauge

	// Payload quality metrics.
	FeaturesSkipped   prometheus.Counter
	RecordParseErrors prometheus.Counter
	MalformedPayloads prometheus.Counter

	// Host surface metrics.
	RefreshRequestsRejected prometheus.Counter
	SnapshotsPublished      prometheus.Counter
	PublishErrors           prometheus.Counter

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Refreshes,
		m.RefreshesCoalesced,
		m.RefreshWaiters,
		m.FetchDuration,
		m.ActiveWarnings,
		m.LastSuccess,
		m.CoordinatorRunning,
		m.FeaturesSkipped,
		m.RecordParseErrors,
		m.MalformedPayloads,
		m.RefreshRequestsRejected,
		m.SnapshotsPublished,
		m.PublishErrors,
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Completed refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshesCoalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_coalesced_total",
			Help:      "Refresh requests that joined an in-flight fetch.",
		}),
		RefreshWaiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_waiters",
			Help:      "Refresh callers currently waiting on an in-flight fetch.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of warnings API requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ActiveWarnings: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_warnings",
			Help:      "Number of warnings active after the last successful refresh.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		CoordinatorRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordinator_running",
			Help:      "1 while the periodic refresh loop is active, 0 otherwise.",
		}),
		FeaturesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_skipped_total",
			Help:      "Features dropped because they carried no usable properties.",
		}),
		RecordParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "record_parse_errors_total",
			Help:      "Warnings whose start/end could not be converted.",
		}),
		MalformedPayloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_payloads_total",
			Help:      "Payloads that were not a FeatureCollection.",
		}),
		RefreshRequestsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_requests_rejected_total",
			Help:      "On-demand refresh requests rejected by the rate limiter.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Sensor snapshots written to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka snapshot writes.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}
