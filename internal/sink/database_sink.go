package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/repository"
)

// RunRecorder persists runs and their readings
type RunRecorder struct {
	runs   repository.RunRepository
	logger *zap.Logger
}

// NewRunRecorder creates a recorder backed by runs
func NewRunRecorder(runs repository.RunRepository, logger *zap.Logger) *RunRecorder {
	return &RunRecorder{
		runs:   runs,
		logger: logger.With(zap.String("component", "run_recorder")),
	}
}

func (r *RunRecorder) RunStarted(ctx context.Context, run model.Run) error {
	if err := r.runs.Create(ctx, &run); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (r *RunRecorder) StateChanged(ctx context.Context, runID uuid.UUID, change model.StateChangedEventData) error {
	// Resetting is transient; Finish stores the final state.
	if change.To == model.StateResetting || change.To == model.StateIdle {
		return nil
	}

	if err := r.runs.UpdateState(ctx, runID, change.To); err != nil {
		return fmt.Errorf("failed to record state: %w", err)
	}
	if change.To == model.StateRunning {
		if err := r.runs.MarkStarted(ctx, runID, time.Now()); err != nil {
			return fmt.Errorf("failed to record start: %w", err)
		}
	}
	return nil
}

func (r *RunRecorder) Record(ctx context.Context, bundle model.ReadingBundle) error {
	return r.runs.AddReading(ctx, &bundle)
}

func (r *RunRecorder) RunEnded(ctx context.Context, run model.Run, summary model.RunEndedEventData) error {
	run.State = summary.FinalState
	run.Ticks = summary.Ticks
	run.RunningTime = summary.RunningTime
	if run.EndedAt == nil {
		now := time.Now()
		run.EndedAt = &now
	}

	if err := r.runs.Finish(ctx, &run); err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}

	r.logger.Info("Run stored",
		zap.String("run_id", run.ID.String()),
		zap.Int("ticks", run.Ticks),
		zap.Duration("running_time", run.RunningTime),
	)
	return nil
}
