// Package observability provides the Prometheus metrics shared by every
// command. Logging comes from storm-data-shared/observability.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orbs_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL run.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	RunDuration     prometheus.Histogram

	// Station processing metrics.
	StationsProcessed *prometheus.CounterVec // labels: sample_type
	StationsSkipped   *prometheus.CounterVec // labels: sample_type, reason={no_coordinates,invalid_coordinates}
	StationMatches    *prometheus.CounterVec // labels: source={input,reference,unresolved}
	RawFiles          *prometheus.CounterVec // labels: sample_type
	FileParseErrors   *prometheus.CounterVec // labels: sample_type
	RecordsWritten    *prometheus.CounterVec // labels: sink, sample_type

	// Portal download metrics.
	Downloads        *prometheus.CounterVec // labels: category, outcome={saved,not_found,not_csv,error}
	DownloadDuration prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a processing run is active, 0 otherwise.",
		}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete processing run over all sample types.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		StationsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_processed_total",
			Help:      "Station records emitted, by sample type.",
		}, []string{"sample_type"}),
		StationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stations_skipped_total",
			Help:      "Station entries skipped, by sample type and reason.",
		}, []string{"sample_type", "reason"}),
		StationMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "station_matches_total",
			Help:      "Station name resolutions by source.",
		}, []string{"source"}),
		RawFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "raw_files_total",
			Help:      "Raw CSV files read, by sample type.",
		}, []string{"sample_type"}),
		FileParseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_parse_errors_total",
			Help:      "Raw CSV files that could not be parsed, by sample type.",
		}, []string{"sample_type"}),
		RecordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Station records written, by sink and sample type.",
		}, []string{"sink", "sample_type"}),
		Downloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Portal download attempts by category and outcome.",
		}, []string{"category", "outcome"}),
		DownloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Portal request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.PipelineRunning,
		m.RunDuration,
		m.StationsProcessed,
		m.StationsSkipped,
		m.StationMatches,
		m.RawFiles,
		m.FileParseErrors,
		m.RecordsWritten,
		m.Downloads,
		m.DownloadDuration,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid "already
// registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
