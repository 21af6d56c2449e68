package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// pipeline. Label values: source={air_quality,pedestrian},
// reason={timestamp,count,unresolved,unjoined,ragged_row},
// outcome={success,not_found,error}, result={hit,miss,skip}.
type Metrics struct {
	RecordsIngested *prometheus.CounterVec // raw records read, by source
	RowsNormalized  *prometheus.CounterVec // canonical rows emitted, by source
	RecordsRejected *prometheus.CounterVec // per-record exclusions, by source and reason

	RowsJoined   prometheus.Counter
	RowsUnjoined prometheus.Counter

	GeocodeLookups *prometheus.CounterVec // external lookups, by outcome
	GeocodeCache   *prometheus.CounterVec // resolver cache lookups, by result

	StageDuration   *prometheus.HistogramVec // seconds per pipeline stage
	PipelineRunning prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RecordsIngested,
		m.RowsNormalized,
		m.RecordsRejected,
		m.RowsJoined,
		m.RowsUnjoined,
		m.GeocodeLookups,
		m.GeocodeCache,
		m.StageDuration,
		m.PipelineRunning,
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
		RecordsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall_etl",
			Name:      "records_ingested_total",
			Help:      "Raw records read from source files.",
		}, []string{"source"}),
		RowsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall_etl",
			Name:      "rows_normalized_total",
			Help:      "Canonical rows emitted by normalization.",
		}, []string{"source"}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall_etl",
			Name:      "records_rejected_total",
			Help:      "Per-record exclusions that did not halt the run.",
		}, []string{"source", "reason"}),
		RowsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "footfall_etl",
			Name:      "rows_joined_total",
			Help:      "Pedestrian rows matched to an air-quality row.",
		}),
		RowsUnjoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "footfall_etl",
			Name:      "rows_unjoined_total",
			Help:      "Pedestrian rows dropped for lack of a matching air-quality row.",
		}),
		GeocodeLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall_etl",
			Name:      "geocode_lookups_total",
			Help:      "External geocoding lookups by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "footfall_etl",
			Name:      "geocode_cache_total",
			Help:      "Area resolver cache lookups by result.",
		}, []string{"result"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "footfall_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "footfall_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
	}
}
