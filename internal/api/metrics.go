package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRecorder exposes the engine's operational counters to Prometheus.
type MetricsRecorder struct {
	signalsGenerated *prometheus.CounterVec
	signalFailures   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	confidence       *prometheus.HistogramVec
}

// NewMetricsRecorder registers the signal engine metrics.
func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{
		signalsGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_engine_signals_generated_total",
				Help: "Total number of signals generated",
			},
			[]string{"action", "horizon"},
		),
		signalFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_engine_failures_total",
				Help: "Total number of failed signal generations",
			},
			[]string{"operation"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_engine_cache_requests_total",
				Help: "Signal cache lookups by outcome",
			},
			[]string{"outcome"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signal_engine_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		confidence: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signal_engine_confidence",
				Help:    "Distribution of final signal confidence",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"action"},
		),
	}
}

// RecordSignal records one generated signal.
func (m *MetricsRecorder) RecordSignal(action, horizon string, confidence float64) {
	m.signalsGenerated.WithLabelValues(action, horizon).Inc()
	m.confidence.WithLabelValues(action).Observe(confidence)
}

// RecordFailure records a failed generation.
func (m *MetricsRecorder) RecordFailure(operation string) {
	m.signalFailures.WithLabelValues(operation).Inc()
}

// RecordCache records a cache lookup outcome ("hit" or "miss").
func (m *MetricsRecorder) RecordCache(outcome string) {
	m.cacheHits.WithLabelValues(outcome).Inc()
}

// RecordLatency records operation latency in seconds.
func (m *MetricsRecorder) RecordLatency(operation string, seconds float64) {
	m.latency.WithLabelValues(operation).Observe(seconds)
}
