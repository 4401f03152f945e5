// Package models defines the persisted record types for sweeps and their
// evaluations.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SweepRun represents a persisted grid-search run
type SweepRun struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	Rule            string          `db:"rule" json:"rule" validate:"required"`
	Objective       string          `db:"objective" json:"objective" validate:"required"`
	Symbol          string          `db:"symbol" json:"symbol"`
	Interval        string          `db:"bar_interval" json:"interval"`
	DataSource      string          `db:"data_source" json:"data_source"`
	DataFingerprint string          `db:"data_fingerprint" json:"data_fingerprint"`
	StartedAt       time.Time       `db:"started_at" json:"started_at"`
	DurationMS      int64           `db:"duration_ms" json:"duration_ms"`
	TotalRuns       int             `db:"total_runs" json:"total_runs"`
	FailedRuns      int             `db:"failed_runs" json:"failed_runs"`
	CacheHits       int64           `db:"cache_hits" json:"cache_hits"`
	BestScore       *float64        `db:"best_score" json:"best_score"`
	BestParams      json.RawMessage `db:"best_params" json:"best_params"`
	GridSpec        json.RawMessage `db:"grid_spec" json:"grid_spec"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// FailureRate returns the fraction of evaluations that failed.
func (s *SweepRun) FailureRate() float64 {
	if s.TotalRuns == 0 {
		return 0
	}
	return float64(s.FailedRuns) / float64(s.TotalRuns)
}

// HasBest reports whether any parameter set qualified.
func (s *SweepRun) HasBest() bool {
	return s.BestScore != nil
}
