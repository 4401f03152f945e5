package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quant-grid/internal/database"
	"github.com/yourusername/quant-grid/internal/models"
)

const errScanSweepRun = "failed to scan sweep run: %w"

const sweepRunColumns = `id, rule, objective, symbol, bar_interval, data_source, data_fingerprint,
		started_at, duration_ms, total_runs, failed_runs, cache_hits,
		best_score, best_params, grid_spec, created_at`

// PostgresSweepRepository implements SweepRepository for PostgreSQL
type PostgresSweepRepository struct {
	db *database.DB
}

// NewPostgresSweepRepository creates a new sweep run repository
func NewPostgresSweepRepository(db *database.DB) SweepRepository {
	return &PostgresSweepRepository{db: db}
}

// SaveRun inserts a sweep run
func (r *PostgresSweepRepository) SaveRun(ctx context.Context, run *models.SweepRun) error {
	query := `
		INSERT INTO sweep_runs (
			id, rule, objective, symbol, bar_interval, data_source, data_fingerprint,
			started_at, duration_ms, total_runs, failed_runs, cache_hits,
			best_score, best_params, grid_spec, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		run.ID, run.Rule, run.Objective, run.Symbol, run.Interval, run.DataSource, run.DataFingerprint,
		run.StartedAt, run.DurationMS, run.TotalRuns, run.FailedRuns, run.CacheHits,
		run.BestScore, run.BestParams, run.GridSpec, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sweep run: %w", err)
	}
	return nil
}

// GetByID retrieves a sweep run by ID
func (r *PostgresSweepRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error) {
	query := `SELECT ` + sweepRunColumns + ` FROM sweep_runs WHERE id = $1`

	run := &models.SweepRun{}
	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Rule, &run.Objective, &run.Symbol, &run.Interval, &run.DataSource, &run.DataFingerprint,
		&run.StartedAt, &run.DurationMS, &run.TotalRuns, &run.FailedRuns, &run.CacheHits,
		&run.BestScore, &run.BestParams, &run.GridSpec, &run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf(errScanSweepRun, err)
	}
	return run, nil
}

// GetRecent retrieves the most recent sweep runs
func (r *PostgresSweepRepository) GetRecent(ctx context.Context, limit int) ([]*models.SweepRun, error) {
	query := `SELECT ` + sweepRunColumns + ` FROM sweep_runs ORDER BY started_at DESC LIMIT $1`

	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sweep runs: %w", err)
	}
	defer rows.Close()

	return scanSweepRuns(rows)
}

// GetByRule retrieves sweep runs for a rule within a date range
func (r *PostgresSweepRepository) GetByRule(ctx context.Context, rule string, start, end time.Time) ([]*models.SweepRun, error) {
	query := `SELECT ` + sweepRunColumns + `
		FROM sweep_runs
		WHERE rule = $1 AND started_at >= $2 AND started_at <= $3
		ORDER BY started_at DESC`

	rows, err := r.db.GetPool().Query(ctx, query, rule, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query sweep runs by rule: %w", err)
	}
	defer rows.Close()

	return scanSweepRuns(rows)
}

func scanSweepRuns(rows pgx.Rows) ([]*models.SweepRun, error) {
	var runs []*models.SweepRun
	for rows.Next() {
		run := &models.SweepRun{}
		if err := rows.Scan(
			&run.ID, &run.Rule, &run.Objective, &run.Symbol, &run.Interval, &run.DataSource, &run.DataFingerprint,
			&run.StartedAt, &run.DurationMS, &run.TotalRuns, &run.FailedRuns, &run.CacheHits,
			&run.BestScore, &run.BestParams, &run.GridSpec, &run.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf(errScanSweepRun, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
