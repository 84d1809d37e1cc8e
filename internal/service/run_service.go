// internal/service/run_service.go
package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/repository"
	"lab-rig-service/internal/utils"
)

// RunService reads the stored run history
type RunService struct {
	runs   repository.RunRepository
	logger *utils.ServiceLogger
}

// NewRunService creates a new run history service
func NewRunService(runs repository.RunRepository, logger *zap.Logger) *RunService {
	return &RunService{
		runs:   runs,
		logger: utils.NewServiceLogger(logger, "run-service"),
	}
}

// ListRuns returns one page of runs, newest first, and the total match count
func (s *RunService) ListRuns(ctx context.Context, filter *repository.RunFilter) ([]*model.Run, int, error) {
	return s.runs.List(ctx, filter)
}

// GetRun returns one run
func (s *RunService) GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	return s.runs.GetByID(ctx, id)
}

// Readings returns the stored readings of a run, at most limit when limit is positive
func (s *RunService) Readings(ctx context.Context, id uuid.UUID, limit int) ([]*model.ReadingBundle, error) {
	if _, err := s.runs.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.runs.ListReadings(ctx, id, limit)
}
