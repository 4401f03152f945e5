// Package service orchestrates optimization runs: loading market data,
// sweeping the parameter grid, analysing the winner, and persisting results.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/config"
	"github.com/yourusername/quant-grid/internal/datasource"
	"github.com/yourusername/quant-grid/internal/logger"
	"github.com/yourusername/quant-grid/internal/market"
	"github.com/yourusername/quant-grid/internal/metrics"
	"github.com/yourusername/quant-grid/internal/models"
	"github.com/yourusername/quant-grid/internal/optimize"
	"github.com/yourusername/quant-grid/internal/repository"
	"github.com/yourusername/quant-grid/internal/strategy"
)

// SweepService coordinates an optimization run end to end.
type SweepService struct {
	cfg      *config.Config
	searcher *optimize.Searcher
	cache    *optimize.EvaluationCache
	factory  *datasource.Factory
	repos    *repository.Repositories
	sweepLog *logger.SweepLogger
	logger   *logrus.Logger

	mu          sync.RWMutex
	lastOutcome *SweepOutcome
	lastRunAt   time.Time
}

// SweepOutcome bundles a sweep result with the optional risk analyses run
// on the winning parameter set.
type SweepOutcome struct {
	Result      *optimize.SweepResult       `json:"result"`
	MonteCarlo  *backtest.MonteCarloResult  `json:"monte_carlo,omitempty"`
	WalkForward *optimize.WalkForwardResult `json:"walk_forward,omitempty"`
}

// NewSweepService creates a new sweep service. repos may be nil when
// persistence is disabled.
func NewSweepService(cfg *config.Config, repos *repository.Repositories, appLogger *logrus.Logger) *SweepService {
	if appLogger == nil {
		appLogger = logrus.New()
	}

	var evalCache *optimize.EvaluationCache
	if cfg.Features.CacheEnabled {
		evalCache = optimize.NewEvaluationCache(
			time.Duration(cfg.Optimizer.CacheTTLSeconds)*time.Second,
			cfg.Optimizer.CacheMaxSize,
		)
	}

	return &SweepService{
		cfg:      cfg,
		searcher: optimize.NewSearcher(appLogger, evalCache),
		cache:    evalCache,
		factory:  datasource.NewFactory(cfg, log.New(appLogger.Writer(), "", 0)),
		repos:    repos,
		sweepLog: logger.NewSweepLogger(appLogger),
		logger:   appLogger,
	}
}

// LoadSeries loads the configured bar series and records its size.
func (s *SweepService) LoadSeries(ctx context.Context) (*market.Series, error) {
	source, err := s.factory.NewSource()
	if err != nil {
		return nil, fmt.Errorf("failed to create data source: %w", err)
	}

	series, err := source.LoadSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load series from %s: %w", source.Name(), err)
	}

	s.sweepLog.LogDataLoaded(source.Name(), series.Len(), series.Fingerprint())
	metrics.UpdateDataBarsLoaded(float64(series.Len()))

	return series, nil
}

// RunSweep executes one configured grid sweep against the series and
// persists the outcome when persistence is enabled.
func (s *SweepService) RunSweep(ctx context.Context, series *market.Series) (*optimize.SweepResult, error) {
	sweepCfg := s.buildSweepConfig(uuid.New())

	workers := sweepCfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	s.sweepLog.LogSweepStart(sweepCfg.SweepID.String(), sweepCfg.RuleName, sweepCfg.Objective, sweepCfg.Grid.Size(), workers)
	metrics.RecordSweepStarted()
	metrics.UpdateActiveWorkers(float64(workers))
	defer metrics.UpdateActiveWorkers(0)

	result, err := s.searcher.Run(ctx, series, sweepCfg)
	if err != nil {
		return nil, fmt.Errorf("sweep failed: %w", err)
	}

	s.recordSweepTelemetry(result)

	if s.cfg.Features.PersistenceEnabled && s.repos != nil {
		if err := s.persistResult(ctx, result, series); err != nil {
			s.logger.WithError(err).WithField("sweep_id", result.SweepID).Error("Failed to persist sweep result")
		}
	}

	return result, nil
}

// RunFull executes the complete pipeline: load data, sweep the grid, then
// run the enabled analyses on the winning parameter set.
func (s *SweepService) RunFull(ctx context.Context) (*SweepOutcome, error) {
	series, err := s.LoadSeries(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.RunSweep(ctx, series)
	if err != nil {
		return nil, err
	}

	outcome := &SweepOutcome{Result: result}

	if s.cfg.Features.MonteCarloEnabled && result.Best != nil {
		mc, err := s.runMonteCarlo(series, result)
		if err != nil {
			s.logger.WithError(err).Warn("Monte Carlo analysis failed")
		} else {
			outcome.MonteCarlo = mc
		}
	}

	if s.cfg.Features.WalkForwardEnabled {
		wf, err := s.runWalkForward(ctx, series)
		if err != nil {
			s.logger.WithError(err).Warn("Walk-forward analysis failed")
		} else {
			outcome.WalkForward = wf
		}
	}

	s.mu.Lock()
	s.lastOutcome = outcome
	s.lastRunAt = time.Now()
	s.mu.Unlock()

	return outcome, nil
}

// RunScheduledSweep runs the full pipeline on behalf of the scheduler.
func (s *SweepService) RunScheduledSweep(ctx context.Context) error {
	metrics.RecordScheduledRun()
	s.sweepLog.LogScheduledRun(s.cfg.Schedule.Sweep, time.Now())

	_, err := s.RunFull(ctx)
	return err
}

// LastOutcome returns the most recent completed pipeline run, or nil.
func (s *SweepService) LastOutcome() *SweepOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOutcome
}

// Status reports the most recent run for the health endpoint.
func (s *SweepService) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := map[string]interface{}{
		"rule":      s.cfg.Optimizer.Rule,
		"objective": s.cfg.Optimizer.Objective,
	}
	if s.cache != nil {
		status["cache_entries"] = s.cache.ItemCount()
	}

	if s.lastOutcome == nil || s.lastOutcome.Result == nil {
		status["last_sweep"] = "none"
		return status
	}

	result := s.lastOutcome.Result
	status["last_sweep_id"] = result.SweepID.String()
	status["last_run_at"] = s.lastRunAt.UTC().Format(time.RFC3339)
	status["total_runs"] = result.TotalRuns
	status["failed_runs"] = result.FailedRuns
	if result.Best != nil {
		status["best_score"] = result.Best.Score
	}
	return status
}

// runMonteCarlo re-evaluates the winning parameter set to recover its trade
// log, then bootstraps that log into a return distribution.
func (s *SweepService) runMonteCarlo(series *market.Series, result *optimize.SweepResult) (*backtest.MonteCarloResult, error) {
	rule, err := strategy.RuleByName(result.RuleName)
	if err != nil {
		return nil, err
	}

	_, replay, err := backtest.Evaluate(series, rule, result.Best.Params, buildEngineConfig(s.cfg.Backtest))
	if err != nil {
		metrics.RecordBacktestRun("historical_replay", "failure")
		return nil, fmt.Errorf("failed to replay best parameters: %w", err)
	}
	metrics.RecordBacktestRun("historical_replay", "success")

	mc, err := backtest.RunMonteCarlo(replay.Trades, backtest.MonteCarloConfig{
		Iterations:      s.cfg.Backtest.MonteCarloIterations,
		Seed:            s.cfg.Backtest.MonteCarloSeed,
		StartingCapital: s.cfg.Backtest.StartingCapital,
		RuinThreshold:   s.cfg.Backtest.RuinThreshold,
	})
	if err != nil {
		metrics.RecordBacktestRun("monte_carlo", "failure")
		return nil, err
	}
	metrics.RecordBacktestRun("monte_carlo", "success")
	metrics.UpdateRuinProbability(result.RuleName, mc.ProbabilityOfRuin)

	s.logger.WithFields(logrus.Fields{
		"sweep_id":              result.SweepID,
		"iterations":            mc.Iterations,
		"mean_return":           mc.MeanReturn,
		"var_95":                mc.VaR95,
		"probability_of_profit": mc.ProbabilityOfProfit,
		"probability_of_ruin":   mc.ProbabilityOfRuin,
	}).Info("Monte Carlo analysis complete")

	return &mc, nil
}

// runWalkForward validates the configured grid out-of-sample across
// sliding train/test windows.
func (s *SweepService) runWalkForward(ctx context.Context, series *market.Series) (*optimize.WalkForwardResult, error) {
	wf := s.cfg.Optimizer.WalkForward
	result, err := s.searcher.WalkForward(ctx, series, s.buildSweepConfig(uuid.Nil), optimize.WalkForwardConfig{
		TrainBars:          wf.TrainBars,
		TestBars:           wf.TestBars,
		StepBars:           wf.StepBars,
		MinTradesPerWindow: wf.MinTradesPerWindow,
	})
	if err != nil {
		metrics.RecordBacktestRun("walk_forward", "failure")
		return nil, err
	}
	metrics.RecordBacktestRun("walk_forward", "success")

	for _, w := range result.Windows {
		s.sweepLog.LogWalkForwardWindow(w.WindowID, w.TrainStart, w.TestStart, w.TrainReport.NetProfit, w.TestReport.NetProfit)
	}

	s.logger.WithFields(logrus.Fields{
		"windows":           len(result.Windows),
		"consistency_score": result.ConsistencyScore,
		"overfit_score":     result.OverfitScore,
		"oos_net_profit":    result.Aggregated.NetProfitPct,
	}).Info("Walk-forward analysis complete")

	return result, nil
}

// recordSweepTelemetry emits the metrics and log events for a finished
// sweep.
func (s *SweepService) recordSweepTelemetry(result *optimize.SweepResult) {
	metrics.RecordSweepCompleted(result.Duration.Seconds())

	for _, ev := range result.Evaluations {
		metrics.RecordEvaluation(ev.Duration.Seconds())
		if ev.Failed() {
			metrics.RecordSweepEvaluation(result.RuleName, "failure")
			s.sweepLog.LogEvaluationFailure(result.SweepID.String(), ev.Params, ev.Failure)
			continue
		}
		metrics.RecordSweepEvaluation(result.RuleName, "success")
		metrics.RecordObjectiveScore(result.Objective, ev.Score)
	}

	if s.cache != nil {
		metrics.CacheHitsTotal.Add(float64(result.CacheHits))
		if misses := result.TotalRuns - int(result.CacheHits); misses > 0 {
			metrics.CacheMissesTotal.Add(float64(misses))
		}
		metrics.UpdateCacheEntries(float64(s.cache.ItemCount()))
	}

	var bestScore float64
	if result.Best != nil {
		bestScore = result.Best.Score
		metrics.UpdateLastSweepBestScore(result.Best.Score)
		metrics.UpdateSweepBestScore(result.RuleName, result.Objective, result.Best.Score)
		metrics.RecordBacktestOutcome(result.RuleName, result.Best.Report.NetProfit, result.Best.Report.WinRate)
		s.sweepLog.LogBestParameters(result.SweepID.String(), result.RuleName, result.Best.Params, result.Best.Score)
	}
	s.sweepLog.LogSweepCompleted(result.SweepID.String(), result.TotalRuns, result.FailedRuns, result.CacheHits, bestScore, result.Duration)
}

// persistResult writes the sweep run and all its evaluations to storage.
func (s *SweepService) persistResult(ctx context.Context, result *optimize.SweepResult, series *market.Series) error {
	run, err := s.buildRunRecord(result, series)
	if err != nil {
		return err
	}
	if err := s.repos.Sweep.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("failed to save sweep run: %w", err)
	}

	evaluations, err := buildEvaluationRecords(result)
	if err != nil {
		return err
	}
	if err := s.repos.Evaluation.SaveBatch(ctx, evaluations); err != nil {
		return fmt.Errorf("failed to save evaluations: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"sweep_id":    result.SweepID,
		"evaluations": len(evaluations),
	}).Info("Sweep result persisted")

	return nil
}

// buildRunRecord maps a sweep result onto its persisted form.
func (s *SweepService) buildRunRecord(result *optimize.SweepResult, series *market.Series) (*models.SweepRun, error) {
	gridSpec, err := json.Marshal(buildGrid(s.cfg.Optimizer.Grid))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grid spec: %w", err)
	}

	run := &models.SweepRun{
		ID:              result.SweepID,
		Rule:            result.RuleName,
		Objective:       result.Objective,
		Symbol:          s.cfg.Data.Symbol,
		Interval:        s.cfg.Data.Interval,
		DataSource:      s.cfg.Data.Source,
		DataFingerprint: series.Fingerprint(),
		StartedAt:       result.StartedAt,
		DurationMS:      result.Duration.Milliseconds(),
		TotalRuns:       result.TotalRuns,
		FailedRuns:      result.FailedRuns,
		CacheHits:       int64(result.CacheHits),
		GridSpec:        gridSpec,
		CreatedAt:       time.Now().UTC(),
	}

	if result.Best != nil {
		score := result.Best.Score
		run.BestScore = &score
		params, err := json.Marshal(result.Best.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal best params: %w", err)
		}
		run.BestParams = params
	}

	return run, nil
}

// buildEvaluationRecords maps every evaluation of a sweep onto its
// persisted form.
func buildEvaluationRecords(result *optimize.SweepResult) ([]*models.SweepEvaluation, error) {
	records := make([]*models.SweepEvaluation, 0, len(result.Evaluations))
	now := time.Now().UTC()

	for _, ev := range result.Evaluations {
		params, err := json.Marshal(ev.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params for run %s: %w", ev.RunID, err)
		}
		report, err := json.Marshal(ev.Report)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal report for run %s: %w", ev.RunID, err)
		}

		records = append(records, &models.SweepEvaluation{
			ID:           ev.RunID,
			SweepID:      result.SweepID,
			Rule:         ev.RuleName,
			Params:       params,
			Score:        ev.Score,
			Rank:         ev.Rank,
			WinRate:      ev.Report.WinRate,
			NetProfit:    ev.Report.NetProfit,
			MaxDrawdown:  ev.Report.MaxDrawdown,
			Expectancy:   ev.Report.Expectancy,
			ProfitFactor: ev.Report.ProfitFactor,
			SharpeRatio:  ev.Report.SharpeRatio,
			TradeCount:   ev.Report.TradeCount,
			DurationMS:   ev.Duration.Milliseconds(),
			Failure:      ev.Failure,
			FullReport:   report,
			CreatedAt:    now,
		})
	}

	return records, nil
}

// buildSweepConfig assembles the optimizer configuration for one run.
func (s *SweepService) buildSweepConfig(sweepID uuid.UUID) optimize.SweepConfig {
	return optimize.SweepConfig{
		SweepID:    sweepID,
		RuleName:   s.cfg.Optimizer.Rule,
		Grid:       buildGrid(s.cfg.Optimizer.Grid),
		Objective:  s.cfg.Optimizer.Objective,
		Workers:    s.cfg.Optimizer.Workers,
		TopN:       s.cfg.Optimizer.TopN,
		MinTrades:  s.cfg.Optimizer.MinTrades,
		MinWinRate: s.cfg.Optimizer.MinWinRate,
		Engine:     buildEngineConfig(s.cfg.Backtest),
	}
}

// buildEngineConfig maps backtest configuration onto an engine config.
func buildEngineConfig(cfg config.BacktestConfig) backtest.Config {
	return backtest.Config{
		StartingCapital: cfg.StartingCapital,
		Execution:       backtest.ExecutionPolicy(cfg.ExecutionPolicy),
		Sizing:          backtest.SizingMode(cfg.SizingMode),
		FixedUnits:      cfg.FixedUnits,
		Costs: backtest.CostModel{
			Commission:    cfg.Commission,
			FeeRate:       cfg.FeeRate,
			StopLossPct:   cfg.StopLossPct,
			TakeProfitPct: cfg.TakeProfitPct,
		},
	}
}

// buildGrid maps configured axes onto a search grid.
func buildGrid(axes []config.GridAxisConfig) optimize.Grid {
	grid := optimize.Grid{Axes: make([]optimize.Axis, 0, len(axes))}
	for _, axis := range axes {
		out := optimize.Axis{
			Name: axis.Name,
			Min:  axis.Min,
			Max:  axis.Max,
			Step: axis.Step,
		}
		if len(axis.Values) > 0 {
			out.Values = make([]any, 0, len(axis.Values))
			for _, v := range axis.Values {
				out.Values = append(out.Values, v)
			}
		}
		grid.Axes = append(grid.Axes, out)
	}
	return grid
}
