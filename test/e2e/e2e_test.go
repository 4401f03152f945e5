//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/config"
	"github.com/yourusername/quant-grid/internal/service"
	"github.com/yourusername/quant-grid/internal/strategy"
	"github.com/yourusername/quant-grid/test/helpers"
)

const skipE2E = "Skipping E2E test in short mode"

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func pipelineConfig(csvPath string) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "quant-grid",
			Environment: "development",
			LogLevel:    "error",
		},
		Data: config.DataConfig{
			Source:   "csv",
			Symbol:   "BTC-USD",
			Interval: "1h",
			CSV:      config.CSVConfig{Path: csvPath},
		},
		Backtest: config.BacktestConfig{
			StartingCapital:      10000,
			ExecutionPolicy:      "signal_close",
			SizingMode:           "fixed_units",
			FixedUnits:           1,
			Commission:           0.25,
			FeeRate:              0.0005,
			MonteCarloIterations: 500,
			MonteCarloSeed:       21,
			RuinThreshold:        0.5,
		},
		Optimizer: config.OptimizerConfig{
			Rule:            "box_breakout",
			Objective:       "composite",
			Workers:         4,
			TopN:            5,
			CacheTTLSeconds: 300,
			CacheMaxSize:    1000,
			Grid: []config.GridAxisConfig{
				{Name: "lookback_window", Min: 3, Max: 9, Step: 2},
			},
			WalkForward: config.WalkForwardConfig{
				TrainBars: 200,
				TestBars:  100,
			},
		},
		Features: config.FeaturesConfig{
			MonteCarloEnabled:  true,
			WalkForwardEnabled: true,
			CacheEnabled:       true,
		},
	}
}

// TestFullPipeline drives csv load -> grid sweep -> winner replay the way
// the optimize run command does, and checks the pieces agree with each
// other.
func TestFullPipeline(t *testing.T) {
	if testing.Short() {
		t.Skip(skipE2E)
	}

	series := helpers.TestSeries(t, 600)
	csvPath := helpers.WriteSeriesCSV(t, t.TempDir(), series)
	cfg := pipelineConfig(csvPath)

	svc := service.NewSweepService(cfg, nil, quietLogger())
	ctx := context.Background()

	loaded, err := svc.LoadSeries(ctx)
	require.NoError(t, err)
	require.Equal(t, series.Len(), loaded.Len())
	require.Equal(t, series.Fingerprint(), loaded.Fingerprint(), "CSV round trip must be lossless")

	outcome, err := svc.RunFull(ctx)
	require.NoError(t, err)
	result := outcome.Result
	require.NotNil(t, result)

	// One axis, four values, no duplicates.
	assert.Equal(t, 4, result.TotalRuns)
	assert.Zero(t, result.FailedRuns)
	require.NotNil(t, result.Best)

	// Replaying the winning parameter set standalone must reproduce the
	// sweep's stored report exactly: the pipeline holds no hidden state.
	rule, err := strategy.RuleByName(cfg.Optimizer.Rule)
	require.NoError(t, err)

	engineCfg := backtest.Config{
		StartingCapital: cfg.Backtest.StartingCapital,
		Execution:       backtest.ExecutionPolicy(cfg.Backtest.ExecutionPolicy),
		Sizing:          backtest.SizingMode(cfg.Backtest.SizingMode),
		FixedUnits:      cfg.Backtest.FixedUnits,
		Costs: backtest.CostModel{
			Commission: cfg.Backtest.Commission,
			FeeRate:    cfg.Backtest.FeeRate,
		},
	}
	replayed, simResult, err := backtest.Evaluate(loaded, rule, result.Best.Params, engineCfg)
	require.NoError(t, err)
	assert.Equal(t, result.Best.Report, replayed)

	// The replayed run obeys the engine's closure guarantees.
	require.NotEmpty(t, simResult.Equity)
	assert.Len(t, simResult.Equity, loaded.Len())
	assert.InDelta(t, cfg.Backtest.StartingCapital, simResult.Equity[0].Value, 1e-9)
	for _, trade := range simResult.Trades {
		assert.Greater(t, trade.ExitIndex, trade.EntryIndex)
	}

	// Risk analyses ran on the winner.
	require.NotNil(t, outcome.MonteCarlo)
	assert.Equal(t, cfg.Backtest.MonteCarloIterations, outcome.MonteCarlo.Iterations)
	require.NotNil(t, outcome.WalkForward)

	// The outcome document serializes the way `optimize run -o` writes it.
	doc, err := json.Marshal(outcome)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(doc, &decoded))
	assert.Contains(t, decoded, "result")
	assert.Contains(t, decoded, "monte_carlo")
	assert.Contains(t, decoded, "walk_forward")
}

// TestPipelineIsDeterministic runs the same sweep twice and expects
// identical rankings and reports.
func TestPipelineIsDeterministic(t *testing.T) {
	if testing.Short() {
		t.Skip(skipE2E)
	}

	series := helpers.TestSeries(t, 400)
	csvPath := helpers.WriteSeriesCSV(t, t.TempDir(), series)

	run := func() *service.SweepOutcome {
		cfg := pipelineConfig(csvPath)
		cfg.Features.MonteCarloEnabled = false
		cfg.Features.WalkForwardEnabled = false
		svc := service.NewSweepService(cfg, nil, quietLogger())
		outcome, err := svc.RunFull(context.Background())
		require.NoError(t, err)
		return outcome
	}

	first := run()
	second := run()

	require.Equal(t, len(first.Result.Evaluations), len(second.Result.Evaluations))
	for i := range first.Result.Evaluations {
		a := first.Result.Evaluations[i]
		b := second.Result.Evaluations[i]
		assert.Equal(t, a.Rank, b.Rank)
		assert.Equal(t, a.Params.Hash(), b.Params.Hash())
		assert.Equal(t, a.Report, b.Report)
	}
}
