package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Inference metrics
	InferenceCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inference_calls_total",
			Help: "Total number of inference calls",
		},
		[]string{"model", "status"},
	)

	InferenceCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inference_call_duration_seconds",
			Help:    "Inference call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model"},
	)

	// Strategy metrics
	StrategySelectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_strategy_selections_total",
			Help: "Total number of strategy selections by the controller",
		},
		[]string{"mode", "strategy"},
	)

	StrategyFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_strategy_fallbacks_total",
			Help: "Total number of fallbacks to the baseline path",
		},
		[]string{"mode"},
	)

	AnalysisResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_results_total",
			Help: "Total number of analysis results produced",
		},
		[]string{"strategy", "status"},
	)

	// Budget metrics
	UsageNeuronsToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "usage_neurons_today",
			Help: "Cost units consumed against the daily ceiling",
		},
	)

	// Archive metrics
	ArchiveOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_operations_total",
			Help: "Total number of archive operations",
		},
		[]string{"operation", "outcome"},
	)

	ArchiveStorageGiB = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "archive_storage_gib",
			Help: "Cumulative archived storage this month in GiB",
		},
	)

	// Application health metrics
	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "application_info",
			Help: "Application information",
		},
		[]string{"service", "version"},
	)
)

// Init sets initial metric values.
func Init(serviceName, version string) {
	ApplicationInfo.WithLabelValues(serviceName, version).Set(1)
}

// Handler exposes the default registry for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
