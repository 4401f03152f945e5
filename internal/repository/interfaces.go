package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quant-grid/internal/models"
)

// SweepRepository defines the interface for sweep run data access
type SweepRepository interface {
	SaveRun(ctx context.Context, run *models.SweepRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SweepRun, error)
	GetRecent(ctx context.Context, limit int) ([]*models.SweepRun, error)
	GetByRule(ctx context.Context, rule string, start, end time.Time) ([]*models.SweepRun, error)
}

// EvaluationRepository defines the interface for evaluation data access
type EvaluationRepository interface {
	SaveBatch(ctx context.Context, evals []*models.SweepEvaluation) error
	GetBySweepID(ctx context.Context, sweepID uuid.UUID) ([]*models.SweepEvaluation, error)
	GetTopByScore(ctx context.Context, sweepID uuid.UUID, limit int) ([]*models.SweepEvaluation, error)
	GetByScoreRange(ctx context.Context, minScore, maxScore float64, limit int) ([]*models.SweepEvaluation, error)
}
