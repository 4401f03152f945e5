// Package metrics defines sweep-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sweep-specific counter vectors
var (
	SweepEvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "sweep_evaluations_total",
		Help:      "Total number of sweep evaluations by rule and status",
	}, []string{"rule", "status"})
)

// Sweep-specific histogram vectors
var (
	ObjectiveScoreDistribution = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quant_grid",
		Name:      "objective_score",
		Help:      "Objective scores observed during sweeps",
		Buckets:   []float64{-10, -5, -1, -0.5, 0, 0.5, 1, 2, 5, 10},
	}, []string{"objective"})
)

// Sweep-specific gauge vectors
var (
	SweepBestScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quant_grid",
		Name:      "sweep_best_score",
		Help:      "Best objective score per rule and objective",
	}, []string{"rule", "objective"})
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "quant_grid",
		Name:      "cache_entries",
		Help:      "Number of entries in the evaluation cache",
	})
)

// RecordSweepEvaluation records a sweep evaluation outcome.
// status should be one of: "success", "failure", "cached"
func RecordSweepEvaluation(rule, status string) {
	SweepEvaluationsTotal.WithLabelValues(rule, status).Inc()
}

// RecordObjectiveScore records an objective score observed during a sweep.
func RecordObjectiveScore(objective string, score float64) {
	ObjectiveScoreDistribution.WithLabelValues(objective).Observe(score)
}

// UpdateSweepBestScore updates the best score for a rule and objective.
func UpdateSweepBestScore(rule, objective string, score float64) {
	SweepBestScore.WithLabelValues(rule, objective).Set(score)
}

// UpdateCacheEntries updates the evaluation cache size gauge.
func UpdateCacheEntries(count float64) {
	CacheEntries.Set(count)
}
