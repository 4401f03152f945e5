package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/config"
	"github.com/yourusername/quant-grid/internal/models"
	"github.com/yourusername/quant-grid/internal/optimize"
	"github.com/yourusername/quant-grid/internal/repository"
	"github.com/yourusername/quant-grid/internal/scheduler"
	"github.com/yourusername/quant-grid/internal/strategy"
)

var _ scheduler.SweepRunner = (*SweepService)(nil)

// MockSweepRepository mocks sweep run storage
type MockSweepRepository struct {
	mock.Mock
}

func (m *MockSweepRepository) SaveRun(ctx context.Context, run *models.SweepRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SweepRun), args.Error(1)
}

func (m *MockSweepRepository) GetRecent(ctx context.Context, limit int) ([]*models.SweepRun, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*models.SweepRun), args.Error(1)
}

func (m *MockSweepRepository) GetByRule(ctx context.Context, rule string, start, end time.Time) ([]*models.SweepRun, error) {
	args := m.Called(ctx, rule, start, end)
	return args.Get(0).([]*models.SweepRun), args.Error(1)
}

// MockEvaluationRepository mocks evaluation storage
type MockEvaluationRepository struct {
	mock.Mock
}

func (m *MockEvaluationRepository) SaveBatch(ctx context.Context, evals []*models.SweepEvaluation) error {
	args := m.Called(ctx, evals)
	return args.Error(0)
}

func (m *MockEvaluationRepository) GetBySweepID(ctx context.Context, sweepID uuid.UUID) ([]*models.SweepEvaluation, error) {
	args := m.Called(ctx, sweepID)
	return args.Get(0).([]*models.SweepEvaluation), args.Error(1)
}

func (m *MockEvaluationRepository) GetTopByScore(ctx context.Context, sweepID uuid.UUID, limit int) ([]*models.SweepEvaluation, error) {
	args := m.Called(ctx, sweepID, limit)
	return args.Get(0).([]*models.SweepEvaluation), args.Error(1)
}

func (m *MockEvaluationRepository) GetByScoreRange(ctx context.Context, minScore, maxScore float64, limit int) ([]*models.SweepEvaluation, error) {
	args := m.Called(ctx, minScore, maxScore, limit)
	return args.Get(0).([]*models.SweepEvaluation), args.Error(1)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// testConfig builds a small deterministic pipeline: a seeded synthetic
// series and a two-cell grid.
func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "quant-grid",
			Environment: "development",
			LogLevel:    "error",
		},
		Data: config.DataConfig{
			Source:   "synthetic",
			Symbol:   "BTC-USD",
			Interval: "1h",
			Synthetic: config.SyntheticConfig{
				Bars:       400,
				StartPrice: 100,
				Drift:      0.05,
				Volatility: 0.4,
				Seed:       42,
			},
		},
		Backtest: config.BacktestConfig{
			StartingCapital:      10000,
			ExecutionPolicy:      "signal_close",
			SizingMode:           "fixed_units",
			FixedUnits:           1,
			Commission:           0.5,
			FeeRate:              0.001,
			MonteCarloIterations: 200,
			MonteCarloSeed:       7,
			RuinThreshold:        0.5,
		},
		Optimizer: config.OptimizerConfig{
			Rule:            "box_breakout",
			Objective:       "net_profit",
			Workers:         2,
			TopN:            5,
			CacheTTLSeconds: 60,
			CacheMaxSize:    1000,
			Grid: []config.GridAxisConfig{
				{Name: "lookback_window", Values: []float64{3, 5}},
			},
		},
		Features: config.FeaturesConfig{CacheEnabled: true},
	}
}

func TestBuildEngineConfig(t *testing.T) {
	cfg := config.BacktestConfig{
		StartingCapital: 25000,
		ExecutionPolicy: "next_open",
		SizingMode:      "full_capital",
		FixedUnits:      2,
		Commission:      1.25,
		FeeRate:         0.0005,
		StopLossPct:     0.03,
		TakeProfitPct:   0.09,
	}

	engine := buildEngineConfig(cfg)

	assert.Equal(t, 25000.0, engine.StartingCapital)
	assert.Equal(t, backtest.ExecNextOpen, engine.Execution)
	assert.Equal(t, backtest.SizeFullCapital, engine.Sizing)
	assert.Equal(t, 2.0, engine.FixedUnits)
	assert.Equal(t, 1.25, engine.Costs.Commission)
	assert.Equal(t, 0.0005, engine.Costs.FeeRate)
	assert.Equal(t, 0.03, engine.Costs.StopLossPct)
	assert.Equal(t, 0.09, engine.Costs.TakeProfitPct)
	assert.NoError(t, engine.Validate())
}

func TestBuildGrid(t *testing.T) {
	axes := []config.GridAxisConfig{
		{Name: "lookback_window", Values: []float64{5, 10, 20}},
		{Name: "stop_loss_pct", Min: 0.01, Max: 0.05, Step: 0.02},
	}

	grid := buildGrid(axes)

	require.Len(t, grid.Axes, 2)
	assert.Equal(t, "lookback_window", grid.Axes[0].Name)
	assert.Equal(t, []any{5.0, 10.0, 20.0}, grid.Axes[0].Values)
	assert.Empty(t, grid.Axes[1].Values)
	assert.Equal(t, 0.01, grid.Axes[1].Min)
	assert.Equal(t, 0.05, grid.Axes[1].Max)
	assert.Equal(t, 0.02, grid.Axes[1].Step)

	// 3 explicit values x 3 range points
	params, err := grid.Expand()
	require.NoError(t, err)
	assert.Len(t, params, 9)
}

func TestBuildSweepConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Optimizer.MinTrades = 4
	cfg.Optimizer.MinWinRate = 0.4
	svc := NewSweepService(cfg, nil, quietLogger())

	id := uuid.New()
	sweepCfg := svc.buildSweepConfig(id)

	assert.Equal(t, id, sweepCfg.SweepID)
	assert.Equal(t, "box_breakout", sweepCfg.RuleName)
	assert.Equal(t, "net_profit", sweepCfg.Objective)
	assert.Equal(t, 2, sweepCfg.Workers)
	assert.Equal(t, 5, sweepCfg.TopN)
	assert.Equal(t, 4, sweepCfg.MinTrades)
	assert.Equal(t, 0.4, sweepCfg.MinWinRate)
	assert.Equal(t, 2, sweepCfg.Grid.Size())
	assert.Equal(t, 10000.0, sweepCfg.Engine.StartingCapital)
}

func TestBuildEvaluationRecords(t *testing.T) {
	sweepID := uuid.New()
	okID := uuid.New()
	failID := uuid.New()
	result := &optimize.SweepResult{
		SweepID:  sweepID,
		RuleName: "box_breakout",
		Evaluations: []optimize.Evaluation{
			{
				RunID:    okID,
				RuleName: "box_breakout",
				Params:   strategy.Params{"lookback_window": 5.0},
				Report:   backtest.Report{WinRate: 0.6, NetProfit: 42.5, MaxDrawdown: 0.12, TradeCount: 10},
				Score:    42.5,
				Rank:     1,
				Duration: 125 * time.Millisecond,
			},
			{
				RunID:    failID,
				RuleName: "box_breakout",
				Params:   strategy.Params{"lookback_window": 900.0},
				Failure:  "insufficient data for rule lookback",
				Err:      strategy.ErrInsufficientData,
			},
		},
	}

	records, err := buildEvaluationRecords(result)
	require.NoError(t, err)
	require.Len(t, records, 2)

	ok := records[0]
	assert.Equal(t, okID, ok.ID)
	assert.Equal(t, sweepID, ok.SweepID)
	assert.Equal(t, 0.6, ok.WinRate)
	assert.Equal(t, 42.5, ok.NetProfit)
	assert.Equal(t, 0.12, ok.MaxDrawdown)
	assert.Equal(t, 10, ok.TradeCount)
	assert.Equal(t, int64(125), ok.DurationMS)
	assert.True(t, ok.Succeeded())

	var params map[string]interface{}
	require.NoError(t, json.Unmarshal(ok.Params, &params))
	assert.Equal(t, 5.0, params["lookback_window"])

	failed := records[1]
	assert.Equal(t, failID, failed.ID)
	assert.False(t, failed.Succeeded())
	assert.Equal(t, "insufficient data for rule lookback", failed.Failure)
	assert.Zero(t, failed.TradeCount)
}

func TestStatusBeforeFirstRun(t *testing.T) {
	svc := NewSweepService(testConfig(), nil, quietLogger())

	status := svc.Status()

	assert.Equal(t, "box_breakout", status["rule"])
	assert.Equal(t, "net_profit", status["objective"])
	assert.Equal(t, "none", status["last_sweep"])
	assert.Contains(t, status, "cache_entries")
	assert.Nil(t, svc.LastOutcome())
}

func TestRunSweepEndToEnd(t *testing.T) {
	svc := NewSweepService(testConfig(), nil, quietLogger())
	ctx := context.Background()

	series, err := svc.LoadSeries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 400, series.Len())

	result, err := svc.RunSweep(ctx, series)
	require.NoError(t, err)

	assert.Equal(t, "box_breakout", result.RuleName)
	assert.Equal(t, 2, result.TotalRuns)
	assert.Len(t, result.Evaluations, 2)
	assert.Zero(t, result.FailedRuns)
	require.NotNil(t, result.Best)
	assert.Equal(t, 1, result.Best.Rank)
	assert.Greater(t, result.Best.Report.TradeCount, 0)
}

func TestRunSweepPersistsResult(t *testing.T) {
	cfg := testConfig()
	cfg.Features.PersistenceEnabled = true

	sweepRepo := new(MockSweepRepository)
	evalRepo := new(MockEvaluationRepository)

	var savedRun *models.SweepRun
	sweepRepo.On("SaveRun", mock.Anything, mock.AnythingOfType("*models.SweepRun")).
		Run(func(args mock.Arguments) { savedRun = args.Get(1).(*models.SweepRun) }).
		Return(nil)

	var savedEvals []*models.SweepEvaluation
	evalRepo.On("SaveBatch", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { savedEvals = args.Get(1).([]*models.SweepEvaluation) }).
		Return(nil)

	svc := NewSweepService(cfg, &repository.Repositories{Sweep: sweepRepo, Evaluation: evalRepo}, quietLogger())
	ctx := context.Background()

	series, err := svc.LoadSeries(ctx)
	require.NoError(t, err)

	result, err := svc.RunSweep(ctx, series)
	require.NoError(t, err)

	sweepRepo.AssertExpectations(t)
	evalRepo.AssertExpectations(t)

	require.NotNil(t, savedRun)
	assert.Equal(t, result.SweepID, savedRun.ID)
	assert.Equal(t, "box_breakout", savedRun.Rule)
	assert.Equal(t, "net_profit", savedRun.Objective)
	assert.Equal(t, "BTC-USD", savedRun.Symbol)
	assert.Equal(t, "synthetic", savedRun.DataSource)
	assert.Equal(t, series.Fingerprint(), savedRun.DataFingerprint)
	assert.Equal(t, result.TotalRuns, savedRun.TotalRuns)
	require.NotNil(t, savedRun.BestScore)
	assert.InDelta(t, result.Best.Score, *savedRun.BestScore, 1e-12)
	assert.NotEmpty(t, savedRun.GridSpec)

	require.Len(t, savedEvals, result.TotalRuns)
	for i, record := range savedEvals {
		assert.Equal(t, result.SweepID, record.SweepID)
		assert.Equal(t, result.Evaluations[i].RunID, record.ID)
		assert.Equal(t, result.Evaluations[i].Rank, record.Rank)
	}
}

func TestRunFullPipeline(t *testing.T) {
	cfg := testConfig()
	cfg.Features.MonteCarloEnabled = true
	cfg.Features.WalkForwardEnabled = true
	cfg.Optimizer.WalkForward = config.WalkForwardConfig{TrainBars: 150, TestBars: 75}

	svc := NewSweepService(cfg, nil, quietLogger())

	outcome, err := svc.RunFull(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	require.NotNil(t, outcome.Result.Best)

	require.NotNil(t, outcome.MonteCarlo)
	assert.Equal(t, 200, outcome.MonteCarlo.Iterations)
	assert.GreaterOrEqual(t, outcome.MonteCarlo.ProbabilityOfRuin, 0.0)
	assert.LessOrEqual(t, outcome.MonteCarlo.ProbabilityOfRuin, 1.0)

	require.NotNil(t, outcome.WalkForward)
	assert.NotEmpty(t, outcome.WalkForward.Windows)

	assert.Same(t, outcome, svc.LastOutcome())

	status := svc.Status()
	assert.Equal(t, outcome.Result.SweepID.String(), status["last_sweep_id"])
	assert.Equal(t, outcome.Result.TotalRuns, status["total_runs"])
	assert.Contains(t, status, "best_score")
}

func TestRunScheduledSweep(t *testing.T) {
	cfg := testConfig()
	cfg.Schedule.Sweep = "0 */6 * * *"

	svc := NewSweepService(cfg, nil, quietLogger())

	require.NoError(t, svc.RunScheduledSweep(context.Background()))
	assert.NotNil(t, svc.LastOutcome())
}

func TestLoadSeriesUnknownSource(t *testing.T) {
	cfg := testConfig()
	cfg.Data.Source = "bloomberg"

	svc := NewSweepService(cfg, nil, quietLogger())

	_, err := svc.LoadSeries(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown data source type")
}
