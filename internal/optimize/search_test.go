package optimize

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/market"
	"github.com/yourusername/quant-grid/internal/strategy"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func seriesFromCloses(t *testing.T, closes []float64) *market.Series {
	t.Helper()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		low := math.Min(open, c) - 1
		if low <= 0 {
			low = math.Min(open, c) / 2
		}
		bars[i] = market.Bar{
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open:      open,
			High:      math.Max(open, c) + 1,
			Low:       low,
			Close:     c,
			Volume:    500,
		}
	}
	s, err := market.NewSeries(bars)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

// zigzagCloses alternates above and below a widening channel so breakout
// rules trade on every bar after warmup.
func zigzagCloses(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100 - float64(i)/4
		} else {
			closes[i] = 103 + float64(i)/4
		}
	}
	return closes
}

func sweepConfig(windows ...any) SweepConfig {
	return SweepConfig{
		RuleName:  strategy.RuleNameBoxBreakout,
		Grid:      Grid{Axes: []Axis{{Name: strategy.ParamLookbackWindow, Values: windows}}},
		Objective: ObjectiveWinRate,
		Engine:    backtest.DefaultConfig(),
	}
}

func TestSearcherRunRanksAllSets(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(12))
	searcher := NewSearcher(testLogger(), nil)

	result, err := searcher.Run(context.Background(), series, sweepConfig(1, 2, 3))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalRuns != 3 {
		t.Fatalf("total runs = %d, want 3", result.TotalRuns)
	}
	if result.FailedRuns != 0 {
		t.Fatalf("failed runs = %d, want 0", result.FailedRuns)
	}
	if len(result.Evaluations) != 3 {
		t.Fatalf("evaluations = %d, want 3", len(result.Evaluations))
	}
	for i, ev := range result.Evaluations {
		if ev.Rank != i+1 {
			t.Errorf("position %d has rank %d", i, ev.Rank)
		}
		if ev.RuleName != strategy.RuleNameBoxBreakout {
			t.Errorf("rule name = %s", ev.RuleName)
		}
		if ev.Report.TradeCount == 0 {
			t.Errorf("evaluation %d traded zero times on a zigzag series", i)
		}
	}
	for i := 1; i < len(result.Evaluations); i++ {
		if result.Evaluations[i].Score > result.Evaluations[i-1].Score {
			t.Fatal("evaluations not sorted by score descending")
		}
	}
	if result.Best == nil || result.Best.Rank != 1 {
		t.Fatalf("best = %+v, want rank 1", result.Best)
	}
	if result.Interrupted {
		t.Fatal("uncancelled sweep marked interrupted")
	}
}

func TestSearcherDeterministicAcrossWorkerCounts(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(16))

	run := func(workers int) *SweepResult {
		cfg := sweepConfig(1, 2, 3, 4, 5)
		cfg.Workers = workers
		result, err := NewSearcher(testLogger(), nil).Run(context.Background(), series, cfg)
		if err != nil {
			t.Fatalf("Run with %d workers: %v", workers, err)
		}
		return result
	}

	serial := run(1)
	parallel := run(4)

	if len(serial.Evaluations) != len(parallel.Evaluations) {
		t.Fatalf("evaluation counts differ: %d vs %d", len(serial.Evaluations), len(parallel.Evaluations))
	}
	for i := range serial.Evaluations {
		a, b := serial.Evaluations[i], parallel.Evaluations[i]
		if a.Params.Hash() != b.Params.Hash() {
			t.Fatalf("position %d: params differ across worker counts", i)
		}
		if a.Rank != b.Rank || a.Score != b.Score {
			t.Fatalf("position %d: rank/score differ: %d/%v vs %d/%v", i, a.Rank, a.Score, b.Rank, b.Score)
		}
		if a.Report != b.Report {
			t.Fatalf("position %d: reports differ", i)
		}
	}
}

func TestSearcherIsolatesFailingParameterSet(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(12))
	searcher := NewSearcher(testLogger(), nil)

	result, err := searcher.Run(context.Background(), series, sweepConfig(1, 50))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalRuns != 2 || result.FailedRuns != 1 {
		t.Fatalf("runs = %d failed = %d, want 2/1", result.TotalRuns, result.FailedRuns)
	}
	if len(result.Evaluations) != 2 {
		t.Fatalf("evaluations = %d, want 2", len(result.Evaluations))
	}

	ranked := result.Evaluations[0]
	if ranked.Failed() || ranked.Rank != 1 {
		t.Fatalf("surviving evaluation = %+v, want rank 1 success", ranked)
	}
	failed := result.Evaluations[1]
	if !failed.Failed() || failed.Rank != 0 {
		t.Fatalf("failing evaluation = %+v, want trailing rank 0", failed)
	}
	if failed.Failure == "" {
		t.Fatal("failure message missing")
	}
	var perr *ParamError
	if !errors.As(failed.Err, &perr) {
		t.Fatalf("err = %T, want *ParamError", failed.Err)
	}
	if !errors.Is(failed.Err, strategy.ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData in chain", failed.Err)
	}
	if w, _ := perr.Params.Int(strategy.ParamLookbackWindow); w != 50 {
		t.Fatalf("failure attached to window %d, want 50", w)
	}
}

func TestSearcherCancellationStopsDispatch(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(12))
	searcher := NewSearcher(testLogger(), nil)

	windows := make([]any, 200)
	for i := range windows {
		windows[i] = i + 1
	}
	cfg := sweepConfig(windows...)
	cfg.Workers = 2

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := searcher.Run(ctx, series, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Interrupted {
		t.Fatal("cancelled sweep not marked interrupted")
	}
	if len(result.Evaluations) >= len(windows) {
		t.Fatalf("dispatched full grid (%d) despite cancellation", len(result.Evaluations))
	}
}

func TestSearcherCacheReuse(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(12))
	evalCache := NewEvaluationCache(time.Minute, 1000)
	searcher := NewSearcher(testLogger(), evalCache)
	cfg := sweepConfig(1, 2, 3)

	first, err := searcher.Run(context.Background(), series, cfg)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if first.CacheHits != 0 {
		t.Fatalf("cold cache reported %d hits", first.CacheHits)
	}

	second, err := searcher.Run(context.Background(), series, cfg)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if second.CacheHits != uint64(second.TotalRuns) {
		t.Fatalf("warm cache hits = %d, want %d", second.CacheHits, second.TotalRuns)
	}
	for i := range first.Evaluations {
		if first.Evaluations[i].Report != second.Evaluations[i].Report {
			t.Fatalf("position %d: cached report differs from computed", i)
		}
	}

	hits, misses, ratio := evalCache.Stats()
	if hits == 0 || misses == 0 || ratio <= 0 {
		t.Fatalf("stats = %d/%d/%v, want non-zero", hits, misses, ratio)
	}
}

func TestSearcherThresholdFilters(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(12))
	searcher := NewSearcher(testLogger(), nil)

	cfg := sweepConfig(1, 2)
	cfg.MinTrades = 10000
	result, err := searcher.Run(context.Background(), series, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Best != nil || len(result.Qualified) != 0 {
		t.Fatalf("impossible threshold still qualified %d sets", len(result.Qualified))
	}
	if len(result.Evaluations) != 2 {
		t.Fatalf("filtering dropped evaluations from the report: %d", len(result.Evaluations))
	}
}

func TestSearcherTopNTruncatesQualified(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(16))
	cfg := sweepConfig(1, 2, 3, 4)
	cfg.TopN = 2

	result, err := NewSearcher(testLogger(), nil).Run(context.Background(), series, cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Qualified) != 2 {
		t.Fatalf("qualified = %d, want top 2", len(result.Qualified))
	}
	if result.Qualified[0].Rank != 1 || result.Qualified[1].Rank != 2 {
		t.Fatalf("qualified ranks = %d,%d, want 1,2", result.Qualified[0].Rank, result.Qualified[1].Rank)
	}
}

func TestSearcherRejectsBadInput(t *testing.T) {
	series := seriesFromCloses(t, zigzagCloses(12))
	searcher := NewSearcher(testLogger(), nil)
	ctx := context.Background()

	if _, err := searcher.Run(ctx, nil, sweepConfig(1)); err == nil {
		t.Fatal("expected error for nil series")
	}

	cfg := sweepConfig(1)
	cfg.RuleName = "astrology"
	if _, err := searcher.Run(ctx, series, cfg); err == nil {
		t.Fatal("expected error for unknown rule")
	}

	cfg = sweepConfig(1)
	cfg.Objective = "vibes"
	if _, err := searcher.Run(ctx, series, cfg); err == nil {
		t.Fatal("expected error for unknown objective")
	}

	cfg = sweepConfig(1)
	cfg.Engine.StartingCapital = -5
	if _, err := searcher.Run(ctx, series, cfg); err == nil {
		t.Fatal("expected error for invalid engine config")
	}

	cfg = sweepConfig(1)
	cfg.Grid = Grid{}
	if _, err := searcher.Run(ctx, series, cfg); err == nil {
		t.Fatal("expected error for empty grid")
	}
}
