package repository

import (
	"fmt"

	"github.com/yourusername/quant-grid/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Sweep      SweepRepository
	Evaluation EvaluationRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Sweep:      NewPostgresSweepRepository(db),
		Evaluation: NewPostgresEvaluationRepository(db),
	}, nil
}
