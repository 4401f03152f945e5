// Package logger provides sweep and backtest event logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// SweepLogger provides dedicated logging for optimization runs.
type SweepLogger struct {
	*logrus.Entry
}

// NewSweepLogger creates a new sweep logger.
func NewSweepLogger(baseLogger *logrus.Logger) *SweepLogger {
	return &SweepLogger{
		Entry: baseLogger.WithField("component", "sweep"),
	}
}

// LogDataLoaded logs the series a run will sweep over.
func (sl *SweepLogger) LogDataLoaded(source string, bars int, fingerprint string) {
	sl.WithFields(logrus.Fields{
		"source":      source,
		"bars":        bars,
		"fingerprint": fingerprint,
	}).Info("Market data loaded")
}

// LogSweepStart logs the start of a parameter sweep.
func (sl *SweepLogger) LogSweepStart(sweepID, rule, objective string, gridSize, workers int) {
	sl.WithFields(logrus.Fields{
		"sweep_id":  sweepID,
		"rule":      rule,
		"objective": objective,
		"grid_size": gridSize,
		"workers":   workers,
	}).Info("Parameter sweep started")
}

// LogSweepCompleted logs a finished sweep with its headline numbers.
func (sl *SweepLogger) LogSweepCompleted(sweepID string, totalRuns, failedRuns int, cacheHits uint64, bestScore float64, duration time.Duration) {
	sl.WithFields(logrus.Fields{
		"sweep_id":    sweepID,
		"total_runs":  totalRuns,
		"failed_runs": failedRuns,
		"cache_hits":  cacheHits,
		"best_score":  bestScore,
		"duration_ms": duration.Milliseconds(),
	}).Info("Parameter sweep completed")
}

// LogEvaluationFailure logs a parameter set that failed to evaluate.
func (sl *SweepLogger) LogEvaluationFailure(sweepID string, params map[string]interface{}, reason string) {
	sl.WithFields(logrus.Fields{
		"sweep_id": sweepID,
		"params":   params,
		"reason":   reason,
	}).Warn("Parameter set failed evaluation")
}

// LogBestParameters logs the winning parameter set of a sweep.
func (sl *SweepLogger) LogBestParameters(sweepID, rule string, params map[string]interface{}, score float64) {
	sl.WithFields(logrus.Fields{
		"sweep_id": sweepID,
		"rule":     rule,
		"params":   params,
		"score":    score,
	}).Info("Best parameters selected")
}

// LogWalkForwardWindow logs one train/test window result.
func (sl *SweepLogger) LogWalkForwardWindow(windowID int, trainStart, testStart time.Time, trainNetProfit, testNetProfit float64) {
	sl.WithFields(logrus.Fields{
		"window_id":        windowID,
		"train_start":      trainStart.Format(time.RFC3339),
		"test_start":       testStart.Format(time.RFC3339),
		"train_net_profit": trainNetProfit,
		"test_net_profit":  testNetProfit,
	}).Info("Walk-forward window evaluated")
}

// LogScheduledRun logs a sweep triggered by the scheduler.
func (sl *SweepLogger) LogScheduledRun(cronSpec string, startedAt time.Time) {
	sl.WithFields(logrus.Fields{
		"cron":       cronSpec,
		"started_at": startedAt.Unix(),
	}).Info("Scheduled sweep triggered")
}
