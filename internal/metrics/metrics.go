// Package metrics provides centralized Prometheus metrics registry for the optimizer.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	SweepsStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "sweeps_started_total",
		Help:      "Total number of parameter sweeps started",
	})
	SweepsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "sweeps_completed_total",
		Help:      "Total number of parameter sweeps completed",
	})
	EvaluationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "evaluations_total",
		Help:      "Total number of parameter set evaluations",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "cache_hits_total",
		Help:      "Total number of evaluation cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "cache_misses_total",
		Help:      "Total number of evaluation cache misses",
	})
	ScheduledRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "scheduled_runs_total",
		Help:      "Total number of sweeps triggered by the scheduler",
	})
)

// Gauge metrics
var (
	ActiveWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quant_grid",
		Name:      "active_workers",
		Help:      "Number of worker goroutines evaluating parameter sets",
	})
	DataBarsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quant_grid",
		Name:      "data_bars_loaded",
		Help:      "Number of bars in the currently loaded series",
	})
	LastSweepBestScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quant_grid",
		Name:      "last_sweep_best_score",
		Help:      "Best objective score from the most recent sweep",
	})
)

// Histogram metrics
var (
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quant_grid",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of single parameter set evaluations in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "quant_grid",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of full parameter sweeps in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(SweepsStartedTotal)
		registry.MustRegister(SweepsCompletedTotal)
		registry.MustRegister(EvaluationsTotal)
		registry.MustRegister(CacheHitsTotal)
		registry.MustRegister(CacheMissesTotal)
		registry.MustRegister(ScheduledRunsTotal)

		// Register gauge metrics
		registry.MustRegister(ActiveWorkers)
		registry.MustRegister(DataBarsLoaded)
		registry.MustRegister(LastSweepBestScore)

		// Register histogram metrics
		registry.MustRegister(EvaluationDuration)
		registry.MustRegister(SweepDuration)

		// Register sweep metrics
		registry.MustRegister(SweepEvaluationsTotal)
		registry.MustRegister(SweepBestScore)
		registry.MustRegister(ObjectiveScoreDistribution)
		registry.MustRegister(CacheEntries)

		// Register backtest metrics
		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(BacktestNetProfit)
		registry.MustRegister(BacktestWinRate)
		registry.MustRegister(MonteCarloRuinProbability)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordSweepStarted records the start of a parameter sweep.
func RecordSweepStarted() {
	SweepsStartedTotal.Inc()
}

// RecordSweepCompleted records a finished sweep and its duration.
func RecordSweepCompleted(durationSeconds float64) {
	SweepsCompletedTotal.Inc()
	SweepDuration.Observe(durationSeconds)
}

// RecordEvaluation records a single parameter set evaluation.
func RecordEvaluation(durationSeconds float64) {
	EvaluationsTotal.Inc()
	EvaluationDuration.Observe(durationSeconds)
}

// RecordCacheHit records an evaluation served from cache.
func RecordCacheHit() {
	CacheHitsTotal.Inc()
}

// RecordCacheMiss records an evaluation that had to run.
func RecordCacheMiss() {
	CacheMissesTotal.Inc()
}

// RecordScheduledRun records a sweep triggered by the cron scheduler.
func RecordScheduledRun() {
	ScheduledRunsTotal.Inc()
}

// UpdateActiveWorkers updates the active worker gauge.
func UpdateActiveWorkers(count float64) {
	ActiveWorkers.Set(count)
}

// UpdateDataBarsLoaded updates the loaded bars gauge.
func UpdateDataBarsLoaded(bars float64) {
	DataBarsLoaded.Set(bars)
}

// UpdateLastSweepBestScore updates the most recent best score gauge.
func UpdateLastSweepBestScore(score float64) {
	LastSweepBestScore.Set(score)
}
