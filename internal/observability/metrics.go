package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mhw"

// Metrics holds the Prometheus counters, histograms, and gauges for the heatwave service.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	FetchEnabled    prometheus.Gauge

	// Refresh cycle metrics.
	RefreshRuns     *prometheus.CounterVec // labels: outcome={success,error}
	RefreshDuration prometheus.Histogram

	// Open-Meteo metrics.
	FetchRequests    *prometheus.CounterVec   // labels: location, outcome={success,error}
	FetchAPIDuration *prometheus.HistogramVec // labels: location

	// Archive metrics.
	ObservationsMerged prometheus.Counter
	RowsRejected       *prometheus.CounterVec // labels: reason={date,value}
	ArchiveDates       prometheus.Gauge
	PersistErrors      prometheus.Counter
	BaselineDays       prometheus.Gauge

	// Detection metrics.
	ActiveEvents    *prometheus.GaugeVec // labels: location
	EventsPublished prometheus.Counter
	PublishErrors   prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.FetchEnabled,
		m.RefreshRuns,
		m.RefreshDuration,
		m.FetchRequests,
		m.FetchAPIDuration,
		m.ObservationsMerged,
		m.RowsRejected,
		m.ArchiveDates,
		m.PersistErrors,
		m.BaselineDays,
		m.ActiveEvents,
		m.EventsPublished,
		m.PublishErrors,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh scheduler is active, 0 when shut down.",
		}),
		FetchEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "fetch_enabled",
			Help:      "1 when periodic Open-Meteo fetching is enabled, 0 otherwise.",
		}),
		RefreshRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-merge-persist-detect cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_requests_total",
			Help:      "Open-Meteo marine requests by site and outcome.",
		}, []string{"location", "outcome"}),
		FetchAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_api_duration_seconds",
			Help:      "Open-Meteo marine request duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"location"}),
		ObservationsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_merged_total",
			Help:      "Site readings written into the archive.",
		}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      "Input rows or cells dropped during merge, by reason.",
		}, []string{"reason"}),
		ArchiveDates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "archive_dates",
			Help:      "Number of dates held in the SST archive.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed attempts to save the archive.",
		}),
		BaselineDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "baseline_days",
			Help:      "Number of day-of-year rows in the loaded baseline.",
		}),
		ActiveEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "detected_events",
			Help:      "Heatwaves found in the trailing detection window, by site.",
		}, []string{"location"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Heatwave events written to the events topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed heatwave event publishes.",
		}),
	}
}
