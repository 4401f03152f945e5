//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-grid/internal/database"
	"github.com/yourusername/quant-grid/internal/models"
	"github.com/yourusername/quant-grid/internal/repository"
	"github.com/yourusername/quant-grid/test/helpers"
)

const skipIntegration = "Skipping integration test in short mode"

func newSweepRun(rule string, score float64) *models.SweepRun {
	return &models.SweepRun{
		ID:              uuid.New(),
		Rule:            rule,
		Objective:       "net_profit",
		Symbol:          "BTC-USD",
		Interval:        "1h",
		DataSource:      "synthetic",
		DataFingerprint: "deadbeef",
		StartedAt:       time.Now().UTC().Truncate(time.Millisecond),
		DurationMS:      1200,
		TotalRuns:       9,
		FailedRuns:      1,
		CacheHits:       3,
		BestScore:       &score,
		BestParams:      json.RawMessage(`{"lookback_window":5}`),
		GridSpec:        json.RawMessage(`{"axes":[{"name":"lookback_window","values":[3,5,8]}]}`),
	}
}

// TestSweepPersistenceIntegration exercises both repositories against a real
// Postgres instance (QUANT_GRID_TEST_DSN); skipped otherwise.
func TestSweepPersistenceIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip(skipIntegration)
	}

	ctx := context.Background()
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db)
	helpers.CleanupSweepTables(t, db)

	repos, err := repository.NewRepositories(db)
	require.NoError(t, err)

	t.Run("SweepRepository", func(t *testing.T) {
		run := newSweepRun("box_breakout", 412.5)
		require.NoError(t, repos.Sweep.SaveRun(ctx, run))

		retrieved, err := repos.Sweep.GetByID(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.Rule, retrieved.Rule)
		assert.Equal(t, run.Objective, retrieved.Objective)
		assert.Equal(t, run.TotalRuns, retrieved.TotalRuns)
		require.True(t, retrieved.HasBest())
		assert.InDelta(t, 412.5, *retrieved.BestScore, 1e-9)
		assert.JSONEq(t, string(run.BestParams), string(retrieved.BestParams))

		_, err = repos.Sweep.GetByID(ctx, uuid.New())
		assert.True(t, errors.Is(err, models.ErrNotFound), "expected ErrNotFound, got %v", err)

		recent, err := repos.Sweep.GetRecent(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, recent)
		assert.Equal(t, run.ID, recent[0].ID)

		byRule, err := repos.Sweep.GetByRule(ctx, "box_breakout",
			time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, byRule, 1)

		none, err := repos.Sweep.GetByRule(ctx, "ma_crossover",
			time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("EvaluationRepository", func(t *testing.T) {
		run := newSweepRun("ma_crossover", 88.0)
		require.NoError(t, repos.Sweep.SaveRun(ctx, run))

		evals := []*models.SweepEvaluation{
			{
				ID:         uuid.New(),
				SweepID:    run.ID,
				Rule:       run.Rule,
				Params:     json.RawMessage(`{"fast_window":5,"slow_window":20}`),
				Score:      88.0,
				Rank:       1,
				WinRate:    0.6,
				NetProfit:  88.0,
				TradeCount: 10,
				DurationMS: 40,
				FullReport: json.RawMessage(`{"net_profit":88.0}`),
			},
			{
				ID:         uuid.New(),
				SweepID:    run.ID,
				Rule:       run.Rule,
				Params:     json.RawMessage(`{"fast_window":8,"slow_window":20}`),
				Score:      -12.0,
				Rank:       2,
				WinRate:    0.4,
				NetProfit:  -12.0,
				TradeCount: 7,
				DurationMS: 35,
				FullReport: json.RawMessage(`{"net_profit":-12.0}`),
			},
			{
				ID:      uuid.New(),
				SweepID: run.ID,
				Rule:    run.Rule,
				Params:  json.RawMessage(`{"fast_window":30,"slow_window":20}`),
				Failure: "fast window must be shorter than slow window",
			},
		}
		require.NoError(t, repos.Evaluation.SaveBatch(ctx, evals))

		stored, err := repos.Evaluation.GetBySweepID(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, stored, 3)

		// Ranked successes come back first, the failure trails.
		assert.Equal(t, 1, stored[0].Rank)
		assert.True(t, stored[0].Succeeded())
		assert.False(t, stored[2].Succeeded())
		assert.Equal(t, "fast window must be shorter than slow window", stored[2].Failure)

		fast, err := stored[0].GetParam("fast_window")
		require.NoError(t, err)
		assert.EqualValues(t, 5, fast)

		top, err := repos.Evaluation.GetTopByScore(ctx, run.ID, 1)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.InDelta(t, 88.0, top[0].Score, 1e-9)

		ranged, err := repos.Evaluation.GetByScoreRange(ctx, 0, 100, 10)
		require.NoError(t, err)
		require.NotEmpty(t, ranged)
		for _, ev := range ranged {
			assert.GreaterOrEqual(t, ev.Score, 0.0)
			assert.LessOrEqual(t, ev.Score, 100.0)
		}
	})

	t.Run("SaveBatchEmptyIsNoop", func(t *testing.T) {
		assert.NoError(t, repos.Evaluation.SaveBatch(ctx, nil))
	})
}

// TestTransactionRollback verifies WithTransaction rolls back on error.
func TestTransactionRollback(t *testing.T) {
	if testing.Short() {
		t.Skip(skipIntegration)
	}

	ctx := context.Background()
	db := database.SetupTestDB(t)
	defer database.TeardownTestDB(t, db)
	helpers.CleanupSweepTables(t, db)

	run := newSweepRun("box_breakout", 1.0)
	sentinel := errors.New("abort")

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		tx := database.TxFromContext(txCtx)
		require.NotNil(t, tx)
		_, err := tx.Exec(txCtx,
			`INSERT INTO sweep_runs (id, rule, objective, symbol, bar_interval, data_source, data_fingerprint, started_at, duration_ms, total_runs, failed_runs, cache_hits)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			run.ID, run.Rule, run.Objective, run.Symbol, run.Interval, run.DataSource,
			run.DataFingerprint, run.StartedAt, run.DurationMS, run.TotalRuns, run.FailedRuns, run.CacheHits)
		require.NoError(t, err)
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	repos, err := repository.NewRepositories(db)
	require.NoError(t, err)
	_, err = repos.Sweep.GetByID(ctx, run.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound), "insert should have rolled back, got %v", err)
}
