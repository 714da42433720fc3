// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline and the HTTP surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors used across the service. A single instance
// is created at startup and shared by the API and the analyzer.
type Metrics struct {
	Registry *prometheus.Registry

	AnalysesStarted   prometheus.Counter
	AnalysesCompleted prometheus.Counter
	AnalysesFailed    *prometheus.CounterVec
	AnalysisDuration  prometheus.Histogram
	ProviderRequests  *prometheus.CounterVec
	PositionsSelected prometheus.Histogram
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		AnalysesStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_analyses_started_total",
			Help: "Number of analysis runs accepted for processing.",
		}),
		AnalysesCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "portfolio_analyses_completed_total",
			Help: "Number of analysis runs that finished successfully.",
		}),
		AnalysesFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_analyses_failed_total",
			Help: "Number of failed analysis runs by error category.",
		}, []string{"category"}),
		AnalysisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_analysis_duration_seconds",
			Help:    "Wall-clock duration of analysis runs.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "portfolio_provider_requests_total",
			Help: "Upstream provider requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		PositionsSelected: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "portfolio_positions_selected",
			Help:    "Number of positions selected per analysis after filtering.",
			Buckets: prometheus.LinearBuckets(0, 1, 11),
		}),
	}
}
