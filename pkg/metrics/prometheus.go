// Package metrics provides Prometheus metrics for the pitwall feature pipeline.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for a pipeline run.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Pipeline output
	racesAssembled prometheus.Counter
	rowsAssembled  prometheus.Counter
	rowsDropped    *prometheus.CounterVec
	sentinels      *prometheus.CounterVec
	dataQuality    *prometheus.CounterVec
	runDuration    prometheus.Gauge
	indexBuild     prometheus.Histogram

	// Weather collaborator
	weatherFetches      *prometheus.CounterVec
	weatherCacheHits    prometheus.Counter
	weatherFetchLatency prometheus.Histogram

	// Worker Metrics - Processing performance
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitwall",
		subsystem:        "features",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.racesAssembled = auto.NewCounter(m.counterOpts("races_assembled_total",
		"Total number of races whose feature rows were assembled"))
	m.rowsAssembled = auto.NewCounter(m.counterOpts("rows_assembled_total",
		"Total number of feature rows emitted"))
	m.rowsDropped = auto.NewCounterVec(m.counterOpts("rows_dropped_total",
		"Input rows dropped before assembly, by reason"), []string{"reason"})
	m.sentinels = auto.NewCounterVec(m.counterOpts("sentinel_values_total",
		"Feature values filled with a documented sentinel or default, by column"), []string{"column"})
	m.dataQuality = auto.NewCounterVec(m.counterOpts("data_quality_notes_total",
		"Non-fatal data anomalies resolved by a documented policy"), []string{"kind"})
	m.runDuration = auto.NewGauge(m.gaugeOpts("run_duration_milliseconds",
		"Wall time of the last pipeline run in milliseconds"))
	m.indexBuild = auto.NewHistogram(m.histogramOpts("index_build_milliseconds",
		"Time spent building the immutable lookup indices", m.histogramBuckets))

	m.weatherFetches = auto.NewCounterVec(m.counterOpts("weather_fetches_total",
		"Weather lookups by outcome (ok, absent, error, budget_exhausted)"), []string{"outcome"})
	m.weatherCacheHits = auto.NewCounter(m.counterOpts("weather_cache_hits_total",
		"Weather lookups answered from the local cache"))
	m.weatherFetchLatency = auto.NewHistogram(m.histogramOpts("weather_fetch_latency_milliseconds",
		"Upstream weather fetch latency in milliseconds",
		[]float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count",
		"Configured size of the per-race worker pool"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds",
		"Per-race assembly latency in milliseconds", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total",
		"Total number of per-race jobs that failed"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
}

// RecordRaceAssembled increments the assembled races counter and adds the row count.
func RecordRaceAssembled(rows int) {
	globalManager.racesAssembled.Inc()
	globalManager.rowsAssembled.Add(float64(rows))
}

// RecordRowDropped counts an input row dropped before assembly.
func RecordRowDropped(reason string) {
	globalManager.rowsDropped.WithLabelValues(reason).Inc()
}

// RecordRowsDropped counts several dropped rows at once.
func RecordRowsDropped(reason string, count int) {
	globalManager.rowsDropped.WithLabelValues(reason).Add(float64(count))
}

// RecordSentinel counts a feature value filled with its sentinel/default.
func RecordSentinel(column string) {
	globalManager.sentinels.WithLabelValues(column).Inc()
}

// RecordDataQuality counts a non-fatal data anomaly.
func RecordDataQuality(kind string) {
	globalManager.dataQuality.WithLabelValues(kind).Inc()
}

// UpdateRunDuration sets the wall time of the last run.
func UpdateRunDuration(ms float64) {
	globalManager.runDuration.Set(ms)
}

// RecordIndexBuild records index construction time in milliseconds.
func RecordIndexBuild(ms float64) {
	globalManager.indexBuild.Observe(ms)
}

// RecordWeatherFetch counts a weather lookup outcome.
func RecordWeatherFetch(outcome string) {
	globalManager.weatherFetches.WithLabelValues(outcome).Inc()
}

// RecordWeatherCacheHit counts a lookup served from the cache.
func RecordWeatherCacheHit() {
	globalManager.weatherCacheHits.Inc()
}

// RecordWeatherFetchLatency records upstream fetch latency in milliseconds.
func RecordWeatherFetchLatency(ms float64) {
	globalManager.weatherFetchLatency.Observe(ms)
}

// UpdateWorkerCount sets the worker pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile dumps the registry in the text exposition format, for batch
// runs scraped through a node-exporter textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %v", ErrExport, err)
	}
	return nil
}
