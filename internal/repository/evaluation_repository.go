package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quant-grid/internal/database"
	"github.com/yourusername/quant-grid/internal/models"
)

const errScanEvaluation = "failed to scan evaluation: %w"

const evaluationColumns = `id, sweep_id, rule, params, score, rank, win_rate, net_profit,
		max_drawdown, expectancy, profit_factor, sharpe_ratio, trade_count,
		duration_ms, failure, full_report, created_at`

// PostgresEvaluationRepository implements EvaluationRepository for PostgreSQL
type PostgresEvaluationRepository struct {
	db *database.DB
}

// NewPostgresEvaluationRepository creates a new evaluation repository
func NewPostgresEvaluationRepository(db *database.DB) EvaluationRepository {
	return &PostgresEvaluationRepository{db: db}
}

// SaveBatch inserts evaluations using high-performance batch insert
func (r *PostgresEvaluationRepository) SaveBatch(ctx context.Context, evals []*models.SweepEvaluation) error {
	if len(evals) == 0 {
		return nil
	}

	// Use COPY for high-performance bulk insert
	columns := []string{
		"id", "sweep_id", "rule", "params", "score", "rank", "win_rate", "net_profit",
		"max_drawdown", "expectancy", "profit_factor", "sharpe_ratio", "trade_count",
		"duration_ms", "failure", "full_report", "created_at",
	}

	copyFromSource := make([][]interface{}, len(evals))
	for i, e := range evals {
		copyFromSource[i] = []interface{}{
			e.ID, e.SweepID, e.Rule, e.Params, e.Score, e.Rank, e.WinRate, e.NetProfit,
			e.MaxDrawdown, e.Expectancy, e.ProfitFactor, e.SharpeRatio, e.TradeCount,
			e.DurationMS, e.Failure, e.FullReport, e.CreatedAt,
		}
	}

	count, err := r.db.GetPool().CopyFrom(ctx, pgx.Identifier{"sweep_evaluations"}, columns, pgx.CopyFromRows(copyFromSource))
	if err != nil {
		return fmt.Errorf("failed to batch insert evaluations: %w", err)
	}

	if count != int64(len(evals)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(evals))
	}

	return nil
}

// GetBySweepID retrieves all evaluations for a sweep, ranked successes first
func (r *PostgresEvaluationRepository) GetBySweepID(ctx context.Context, sweepID uuid.UUID) ([]*models.SweepEvaluation, error) {
	query := `SELECT ` + evaluationColumns + `
		FROM sweep_evaluations
		WHERE sweep_id = $1
		ORDER BY (failure <> ''), rank ASC`

	rows, err := r.db.GetPool().Query(ctx, query, sweepID)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations by sweep: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

// GetTopByScore retrieves the best-scoring successful evaluations for a sweep
func (r *PostgresEvaluationRepository) GetTopByScore(ctx context.Context, sweepID uuid.UUID, limit int) ([]*models.SweepEvaluation, error) {
	query := `SELECT ` + evaluationColumns + `
		FROM sweep_evaluations
		WHERE sweep_id = $1 AND failure = ''
		ORDER BY score DESC
		LIMIT $2`

	rows, err := r.db.GetPool().Query(ctx, query, sweepID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top evaluations: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

// GetByScoreRange retrieves successful evaluations within a score range across sweeps
func (r *PostgresEvaluationRepository) GetByScoreRange(ctx context.Context, minScore, maxScore float64, limit int) ([]*models.SweepEvaluation, error) {
	query := `SELECT ` + evaluationColumns + `
		FROM sweep_evaluations
		WHERE failure = '' AND score >= $1 AND score <= $2
		ORDER BY score DESC
		LIMIT $3`

	rows, err := r.db.GetPool().Query(ctx, query, minScore, maxScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evaluations by score range: %w", err)
	}
	defer rows.Close()

	return scanEvaluations(rows)
}

func scanEvaluations(rows pgx.Rows) ([]*models.SweepEvaluation, error) {
	var evals []*models.SweepEvaluation
	for rows.Next() {
		e := &models.SweepEvaluation{}
		if err := rows.Scan(
			&e.ID, &e.SweepID, &e.Rule, &e.Params, &e.Score, &e.Rank, &e.WinRate, &e.NetProfit,
			&e.MaxDrawdown, &e.Expectancy, &e.ProfitFactor, &e.SharpeRatio, &e.TradeCount,
			&e.DurationMS, &e.Failure, &e.FullReport, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf(errScanEvaluation, err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
