package database

import (
	"context"
	"fmt"

	"github.com/yourusername/quant-grid/internal/config"
)

// schemaDDL creates the sweep persistence tables. Statements are idempotent
// so Initialize can run on every start.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS sweep_runs (
	id UUID PRIMARY KEY,
	rule TEXT NOT NULL,
	objective TEXT NOT NULL,
	symbol TEXT NOT NULL DEFAULT '',
	bar_interval TEXT NOT NULL DEFAULT '',
	data_source TEXT NOT NULL DEFAULT '',
	data_fingerprint TEXT NOT NULL DEFAULT '',
	started_at TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	total_runs INT NOT NULL DEFAULT 0,
	failed_runs INT NOT NULL DEFAULT 0,
	cache_hits BIGINT NOT NULL DEFAULT 0,
	best_score DOUBLE PRECISION,
	best_params JSONB,
	grid_spec JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sweep_evaluations (
	id UUID PRIMARY KEY,
	sweep_id UUID NOT NULL REFERENCES sweep_runs(id) ON DELETE CASCADE,
	rule TEXT NOT NULL,
	params JSONB NOT NULL,
	score DOUBLE PRECISION NOT NULL DEFAULT 0,
	rank INT NOT NULL DEFAULT 0,
	win_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	net_profit DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_drawdown DOUBLE PRECISION NOT NULL DEFAULT 0,
	expectancy DOUBLE PRECISION NOT NULL DEFAULT 0,
	profit_factor DOUBLE PRECISION NOT NULL DEFAULT 0,
	sharpe_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
	trade_count INT NOT NULL DEFAULT 0,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	failure TEXT NOT NULL DEFAULT '',
	full_report JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sweep_runs_started_at ON sweep_runs (started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sweep_runs_rule ON sweep_runs (rule);
CREATE INDEX IF NOT EXISTS idx_sweep_evaluations_sweep_id ON sweep_evaluations (sweep_id);
CREATE INDEX IF NOT EXISTS idx_sweep_evaluations_score ON sweep_evaluations (score DESC);
`

// Initialize creates a database connection pool and bootstraps the schema
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	// Create connection pool
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// EnsureSchema creates the sweep tables and indexes when they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
