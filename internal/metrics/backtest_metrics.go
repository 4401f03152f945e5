// Package metrics defines backtesting-specific metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quant_grid",
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by method and status",
	}, []string{"method", "status"})
)

// Backtest histogram vectors
var (
	BacktestNetProfit = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quant_grid",
		Name:      "backtest_net_profit",
		Help:      "Net profit from backtest runs by rule",
		Buckets:   []float64{-1000, -500, -100, -50, -10, 0, 10, 50, 100, 500, 1000},
	}, []string{"rule"})
	BacktestWinRate = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quant_grid",
		Name:      "backtest_win_rate",
		Help:      "Win rates from backtest runs by rule",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
	}, []string{"rule"})
)

// Backtest gauge vectors
var (
	MonteCarloRuinProbability = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "quant_grid",
		Name:      "monte_carlo_ruin_probability",
		Help:      "Estimated probability of ruin from the latest Monte Carlo run for each rule",
	}, []string{"rule"})
)

// RecordBacktestRun records a backtest run event.
// method should be one of: "historical_replay", "monte_carlo", "walk_forward"
// status should be one of: "success", "failure", "timeout"
func RecordBacktestRun(method, status string) {
	BacktestRunsTotal.WithLabelValues(method, status).Inc()
}

// RecordBacktestOutcome records headline numbers from a finished backtest.
func RecordBacktestOutcome(rule string, netProfit, winRate float64) {
	BacktestNetProfit.WithLabelValues(rule).Observe(netProfit)
	BacktestWinRate.WithLabelValues(rule).Observe(winRate)
}

// UpdateRuinProbability updates the Monte Carlo ruin probability for a rule.
func UpdateRuinProbability(rule string, probability float64) {
	MonteCarloRuinProbability.WithLabelValues(rule).Set(probability)
}
