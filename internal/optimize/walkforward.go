package optimize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/market"
	"github.com/yourusername/quant-grid/internal/strategy"
)

// WalkForwardConfig configures walk-forward validation. Windows are counted
// in bars; StepBars defaults to TestBars so test segments tile without
// overlap.
type WalkForwardConfig struct {
	TrainBars          int `json:"train_bars"`
	TestBars           int `json:"test_bars"`
	StepBars           int `json:"step_bars"`
	MinTradesPerWindow int `json:"min_trades_per_window"`
}

// WalkForwardWindow is one train/test split: the grid search ran on the
// train segment and its winner was re-evaluated out-of-sample on the test
// segment.
type WalkForwardWindow struct {
	WindowID    int             `json:"window_id"`
	TrainStart  time.Time       `json:"train_start"`
	TrainEnd    time.Time       `json:"train_end"`
	TestStart   time.Time       `json:"test_start"`
	TestEnd     time.Time       `json:"test_end"`
	BestParams  strategy.Params `json:"best_params"`
	TrainReport backtest.Report `json:"train_report"`
	TestReport  backtest.Report `json:"test_report"`
}

// WalkForwardAggregate averages the out-of-sample reports across windows.
type WalkForwardAggregate struct {
	NetProfitPct float64 `json:"net_profit_pct"`
	SharpeRatio  float64 `json:"sharpe_ratio"`
	MaxDrawdown  float64 `json:"max_drawdown"`
}

// WalkForwardResult collects every window plus cross-window scores.
// ConsistencyScore is the fraction of windows profitable out-of-sample;
// OverfitScore compares in-sample to out-of-sample returns, where values
// near 1 mean the train performance evaporated on unseen bars.
type WalkForwardResult struct {
	Windows          []WalkForwardWindow  `json:"windows"`
	Aggregated       WalkForwardAggregate `json:"aggregated"`
	ConsistencyScore float64              `json:"consistency_score"`
	OverfitScore     float64              `json:"overfit_score"`
}

// WalkForward slides train/test windows across the series, runs a full grid
// search on each train segment, and scores the winning parameters on the
// following unseen test segment. A window whose test evaluation fails or
// falls short of MinTradesPerWindow is skipped; cancellation stops opening
// new windows.
func (s *Searcher) WalkForward(ctx context.Context, series *market.Series, sweep SweepConfig, cfg WalkForwardConfig) (*WalkForwardResult, error) {
	if series == nil {
		return nil, errors.New("series is required")
	}
	if cfg.TrainBars < market.MinSeriesLength || cfg.TestBars < market.MinSeriesLength {
		return nil, fmt.Errorf("train and test windows need at least %d bars", market.MinSeriesLength)
	}
	rule, err := strategy.RuleByName(sweep.RuleName)
	if err != nil {
		return nil, err
	}
	step := cfg.StepBars
	if step <= 0 {
		step = cfg.TestBars
	}
	if series.Len() < cfg.TrainBars+cfg.TestBars {
		return nil, fmt.Errorf("series has %d bars, walk-forward needs %d", series.Len(), cfg.TrainBars+cfg.TestBars)
	}

	windows := []WalkForwardWindow{}
	windowID := 0
	for start := 0; start+cfg.TrainBars+cfg.TestBars <= series.Len(); start += step {
		if ctx.Err() != nil {
			break
		}
		windowID++

		trainEnd := start + cfg.TrainBars
		testEnd := trainEnd + cfg.TestBars
		train, err := series.Slice(start, trainEnd)
		if err != nil {
			return nil, fmt.Errorf("window %d train slice: %w", windowID, err)
		}
		test, err := series.Slice(trainEnd, testEnd)
		if err != nil {
			return nil, fmt.Errorf("window %d test slice: %w", windowID, err)
		}

		windowSweep := sweep
		windowSweep.SweepID = uuid.Nil
		sweepResult, err := s.Run(ctx, train, windowSweep)
		if err != nil {
			return nil, fmt.Errorf("window %d sweep: %w", windowID, err)
		}
		if sweepResult.Best == nil {
			s.logger.WithField("window_id", windowID).Warn("No qualified parameters in training window")
			continue
		}
		best := sweepResult.Best

		testReport, _, err := backtest.Evaluate(test, rule, best.Params, sweep.Engine)
		if err != nil {
			s.logger.WithError(err).WithField("window_id", windowID).Warn("Out-of-sample evaluation failed")
			continue
		}
		if cfg.MinTradesPerWindow > 0 &&
			(best.Report.TradeCount < cfg.MinTradesPerWindow || testReport.TradeCount < cfg.MinTradesPerWindow) {
			s.logger.WithFields(logrus.Fields{
				"window_id":    windowID,
				"train_trades": best.Report.TradeCount,
				"test_trades":  testReport.TradeCount,
			}).Debug("Window below trade threshold")
			continue
		}

		windows = append(windows, WalkForwardWindow{
			WindowID:    windowID,
			TrainStart:  train.First().Timestamp,
			TrainEnd:    train.Last().Timestamp,
			TestStart:   test.First().Timestamp,
			TestEnd:     test.Last().Timestamp,
			BestParams:  best.Params,
			TrainReport: best.Report,
			TestReport:  testReport,
		})
	}

	return &WalkForwardResult{
		Windows:          windows,
		Aggregated:       aggregateWindows(windows),
		ConsistencyScore: consistencyScore(windows),
		OverfitScore:     overfitScore(windows),
	}, nil
}

func aggregateWindows(windows []WalkForwardWindow) WalkForwardAggregate {
	if len(windows) == 0 {
		return WalkForwardAggregate{}
	}
	agg := WalkForwardAggregate{}
	for _, w := range windows {
		agg.NetProfitPct += w.TestReport.NetProfitPct
		agg.SharpeRatio += w.TestReport.SharpeRatio
		agg.MaxDrawdown += w.TestReport.MaxDrawdown
	}
	agg.NetProfitPct /= float64(len(windows))
	agg.SharpeRatio /= float64(len(windows))
	agg.MaxDrawdown /= float64(len(windows))
	return agg
}

func consistencyScore(windows []WalkForwardWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	profitable := 0
	for _, w := range windows {
		if w.TestReport.NetProfit > 0 {
			profitable++
		}
	}
	return float64(profitable) / float64(len(windows))
}

func overfitScore(windows []WalkForwardWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	trainReturn := 0.0
	testReturn := 0.0
	for _, w := range windows {
		trainReturn += w.TrainReport.NetProfitPct
		testReturn += w.TestReport.NetProfitPct
	}
	if trainReturn == 0 {
		return 0
	}
	return (trainReturn - testReturn) / trainReturn
}
