package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aurora_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the forecast pipeline.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome={success,fetch_error,malformed_input,publish_error,skipped,error}
	RunDuration     prometheus.Histogram
	PipelineRunning prometheus.Gauge
	LastSuccess     prometheus.Gauge

	// Fetch metrics.
	FetchErrors  *prometheus.CounterVec // labels: kind={network,status,decode}
	FetchRetries prometheus.Counter

	// Transform metrics.
	InputCoordinates  prometheus.Gauge
	FeaturesPublished prometheus.Gauge
	FeaturesFiltered  prometheus.Gauge

	// Publish metrics.
	PublishDuration prometheus.Histogram
	ArtifactBytes   prometheus.Gauge
	DeleteFailures  prometheus.Counter

	// Dashboard metrics.
	SpaceWeatherRequests *prometheus.CounterVec // labels: source={kp,solar_wind,cloud_cover}, outcome={success,error}
	CloudCoverCache      *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-transform-publish run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful publish.",
		}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Upstream feed failures by kind, counted once per run.",
		}, []string{"kind"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Retried upstream requests after a transient failure.",
		}),
		InputCoordinates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_coordinates",
			Help:      "Grid cells in the last fetched forecast document.",
		}),
		FeaturesPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features_published",
			Help:      "Features in the last published collection.",
		}),
		FeaturesFiltered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "features_filtered",
			Help:      "Zero-intensity cells dropped from the last collection.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Duration of the object-store publish step.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ArtifactBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_bytes",
			Help:      "Size of the last published artifact.",
		}),
		DeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delete_failures_total",
			Help:      "Failed removals of the previous artifact (non-fatal).",
		}),
		SpaceWeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "space_weather_requests_total",
			Help:      "Dashboard upstream requests by source and outcome.",
		}, []string{"source", "outcome"}),
		CloudCoverCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cloud_cover_cache_total",
			Help:      "Cloud cover cache lookups by result.",
		}, []string{"result"}),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PipelineRunning,
		m.LastSuccess,
		m.FetchErrors,
		m.FetchRetries,
		m.InputCoordinates,
		m.FeaturesPublished,
		m.FeaturesFiltered,
		m.PublishDuration,
		m.ArtifactBytes,
		m.DeleteFailures,
		m.SpaceWeatherRequests,
		m.CloudCoverCache,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RunsTotal:            prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "runs_total"}, []string{"outcome"}),
		RunDuration:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "run_duration_seconds"}),
		PipelineRunning:      prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		LastSuccess:          prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "last_success_timestamp_seconds"}),
		FetchErrors:          prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_errors_total"}, []string{"kind"}),
		FetchRetries:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "fetch_retries_total"}),
		InputCoordinates:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "input_coordinates"}),
		FeaturesPublished:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "features_published"}),
		FeaturesFiltered:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "features_filtered"}),
		PublishDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "publish_duration_seconds"}),
		ArtifactBytes:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "artifact_bytes"}),
		DeleteFailures:       prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "delete_failures_total"}),
		SpaceWeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "space_weather_requests_total"}, []string{"source", "outcome"}),
		CloudCoverCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cloud_cover_cache_total"}, []string{"result"}),
	}
}
