// Package optimize runs parameter grid searches: it expands axis grids into
// parameter sets, evaluates each one independently through the backtest
// pipeline on a worker pool, and ranks the survivors by a named objective.
package optimize

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/market"
	"github.com/yourusername/quant-grid/internal/strategy"
)

// SweepConfig describes one grid search.
type SweepConfig struct {
	// SweepID, when set, is used as the run's identifier so callers can
	// correlate their own records with the result. Zero means generate one.
	SweepID    uuid.UUID       `json:"sweep_id,omitempty"`
	RuleName   string          `json:"rule_name"`
	Grid       Grid            `json:"grid"`
	Objective  string          `json:"objective"`
	Workers    int             `json:"workers"`
	TopN       int             `json:"top_n"`
	MinTrades  int             `json:"min_trades"`
	MinWinRate float64         `json:"min_win_rate"`
	Engine     backtest.Config `json:"engine"`
}

// SweepResult is the ranked outcome of one grid search. Evaluations holds
// every run, ranked successes first and failures trailing with Rank 0;
// Qualified holds the top results that cleared the configured thresholds.
type SweepResult struct {
	SweepID     uuid.UUID     `json:"sweep_id"`
	RuleName    string        `json:"rule_name"`
	Objective   string        `json:"objective"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	TotalRuns   int           `json:"total_runs"`
	FailedRuns  int           `json:"failed_runs"`
	CacheHits   uint64        `json:"cache_hits"`
	Interrupted bool          `json:"interrupted"`
	Evaluations []Evaluation  `json:"evaluations"`
	Qualified   []Evaluation  `json:"qualified"`
	Best        *Evaluation   `json:"best,omitempty"`
}

// Searcher executes sweeps. It is safe for concurrent use; the optional
// cache is shared across sweeps so repeated searches on the same series
// reuse finished evaluations.
type Searcher struct {
	logger *logrus.Logger
	cache  *EvaluationCache
}

// NewSearcher creates a searcher. cache may be nil to disable report
// caching.
func NewSearcher(logger *logrus.Logger, evalCache *EvaluationCache) *Searcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Searcher{logger: logger, cache: evalCache}
}

// Run expands the grid and evaluates every parameter set against the
// series. Evaluations are independent: one failing set is recorded and the
// rest of the grid continues. Cancelling the context stops dispatching new
// sets; in-flight evaluations finish and are included, with Interrupted set
// on the result.
func (s *Searcher) Run(ctx context.Context, series *market.Series, cfg SweepConfig) (*SweepResult, error) {
	if series == nil {
		return nil, errors.New("series is required")
	}
	rule, err := strategy.RuleByName(cfg.RuleName)
	if err != nil {
		return nil, err
	}
	objective, err := ObjectiveByName(cfg.Objective)
	if err != nil {
		return nil, err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	paramSets, err := cfg.Grid.Expand()
	if err != nil {
		return nil, fmt.Errorf("invalid grid: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(paramSets) {
		workers = len(paramSets)
	}
	topN := cfg.TopN
	if topN <= 0 {
		topN = 10
	}

	sweepID := cfg.SweepID
	if sweepID == uuid.Nil {
		sweepID = uuid.New()
	}
	startedAt := time.Now()
	s.logger.WithFields(logrus.Fields{
		"sweep_id":  sweepID,
		"rule":      rule.Name(),
		"objective": objective.Name,
		"grid_size": len(paramSets),
		"workers":   workers,
	}).Info("Starting parameter sweep")

	jobs := make(chan strategy.Params)
	results := make(chan Evaluation, len(paramSets))
	var cacheHits uint64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for params := range jobs {
				results <- s.evaluate(series, rule, params, cfg.Engine, objective, &cacheHits)
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, params := range paramSets {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- params:
			dispatched++
		}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	evals := make([]Evaluation, 0, dispatched)
	for ev := range results {
		if ev.Failed() {
			s.logger.WithError(ev.Err).WithFields(logrus.Fields{
				"sweep_id": sweepID,
				"run_id":   ev.RunID,
			}).Warn("Parameter set evaluation failed")
		}
		evals = append(evals, ev)
	}

	ranked := rankEvaluations(evals)
	qualified := filterQualified(ranked, cfg.MinTrades, cfg.MinWinRate)
	if len(qualified) > topN {
		qualified = qualified[:topN]
	}

	result := &SweepResult{
		SweepID:     sweepID,
		RuleName:    rule.Name(),
		Objective:   objective.Name,
		StartedAt:   startedAt,
		Duration:    time.Since(startedAt),
		TotalRuns:   len(paramSets),
		CacheHits:   atomic.LoadUint64(&cacheHits),
		Interrupted: ctx.Err() != nil,
		Evaluations: ranked,
	}
	for _, ev := range ranked {
		if ev.Failed() {
			result.FailedRuns++
		}
	}
	if len(qualified) > 0 {
		result.Qualified = qualified
		best := qualified[0]
		result.Best = &best
	}

	fields := logrus.Fields{
		"sweep_id":    sweepID,
		"duration":    result.Duration,
		"total_runs":  result.TotalRuns,
		"failed_runs": result.FailedRuns,
		"cache_hits":  result.CacheHits,
		"interrupted": result.Interrupted,
	}
	if result.Best != nil {
		fields["best_score"] = result.Best.Score
	}
	s.logger.WithFields(fields).Info("Parameter sweep complete")

	return result, nil
}

// evaluate runs one parameter set start to finish. A panicking rule is
// contained here: it becomes a failed evaluation instead of killing the
// worker.
func (s *Searcher) evaluate(series *market.Series, rule strategy.Rule, params strategy.Params, engineCfg backtest.Config, objective Objective, cacheHits *uint64) (ev Evaluation) {
	start := time.Now()
	ev = Evaluation{
		RunID:    uuid.New(),
		RuleName: rule.Name(),
		Params:   params,
	}
	defer func() {
		ev.Duration = time.Since(start)
		if r := recover(); r != nil {
			perr := &ParamError{RunID: ev.RunID, Params: params, Err: fmt.Errorf("panic: %v", r)}
			ev.Err = perr
			ev.Failure = perr.Error()
		}
	}()

	var key CacheKey
	if s.cache != nil {
		key = CacheKey{
			RuleName:          rule.Name(),
			ParamsHash:        params.Hash(),
			SeriesFingerprint: series.Fingerprint(),
			ConfigHash:        engineCfg.Hash(),
		}
		if report, found := s.cache.Get(key); found {
			atomic.AddUint64(cacheHits, 1)
			ev.Report = report
			ev.Score = objective.Score(report)
			return ev
		}
	}

	report, _, err := backtest.Evaluate(series, rule, params, engineCfg)
	if err != nil {
		perr := &ParamError{RunID: ev.RunID, Params: params, Err: err}
		ev.Err = perr
		ev.Failure = perr.Error()
		return ev
	}

	ev.Report = report
	ev.Score = objective.Score(report)
	if s.cache != nil {
		s.cache.Set(key, report)
	}
	return ev
}
