// internal/service/sink.go
package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lab-rig-service/internal/model"
)

// Sink receives the reading bundle of every running poll tick
type Sink interface {
	Record(ctx context.Context, bundle model.ReadingBundle) error
}

// RunObserver is implemented by sinks that track run boundaries
type RunObserver interface {
	RunStarted(ctx context.Context, run model.Run) error
	RunEnded(ctx context.Context, run model.Run, summary model.RunEndedEventData) error
}

// StateObserver is implemented by sinks that follow controller transitions
type StateObserver interface {
	StateChanged(ctx context.Context, runID uuid.UUID, change model.StateChangedEventData) error
}

// HealthObserver is implemented by sinks that want every health report, including
// stop-only ticks that produce no readings
type HealthObserver interface {
	HealthReported(ctx context.Context, runID uuid.UUID, report model.HealthReport) error
}

// AutoStopObserver is notified when the cutoff stops a run
type AutoStopObserver interface {
	AutoStopped(ctx context.Context, runID uuid.UUID, summary model.RunEndedEventData) error
}

// fanout delivers to every sink, logging failures without interrupting the others
type fanout struct {
	sinks  []Sink
	logger *zap.Logger
}

func (f *fanout) record(ctx context.Context, bundle model.ReadingBundle) {
	for _, s := range f.sinks {
		if err := s.Record(ctx, bundle); err != nil {
			f.logger.Warn("Sink rejected reading", zap.Int("tick", bundle.Tick), zap.Error(err))
		}
	}
}

func (f *fanout) runStarted(ctx context.Context, run model.Run) {
	for _, s := range f.sinks {
		if o, ok := s.(RunObserver); ok {
			if err := o.RunStarted(ctx, run); err != nil {
				f.logger.Warn("Run observer failed on start", zap.Error(err))
			}
		}
	}
}

func (f *fanout) runEnded(ctx context.Context, run model.Run, summary model.RunEndedEventData) {
	for _, s := range f.sinks {
		if o, ok := s.(RunObserver); ok {
			if err := o.RunEnded(ctx, run, summary); err != nil {
				f.logger.Warn("Run observer failed on end", zap.Error(err))
			}
		}
	}
}

func (f *fanout) stateChanged(ctx context.Context, runID uuid.UUID, change model.StateChangedEventData) {
	for _, s := range f.sinks {
		if o, ok := s.(StateObserver); ok {
			if err := o.StateChanged(ctx, runID, change); err != nil {
				f.logger.Warn("State observer failed", zap.Error(err))
			}
		}
	}
}

func (f *fanout) healthReported(ctx context.Context, runID uuid.UUID, report model.HealthReport) {
	for _, s := range f.sinks {
		if o, ok := s.(HealthObserver); ok {
			if err := o.HealthReported(ctx, runID, report); err != nil {
				f.logger.Warn("Health observer failed", zap.Error(err))
			}
		}
	}
}

func (f *fanout) autoStopped(ctx context.Context, runID uuid.UUID, summary model.RunEndedEventData) {
	for _, s := range f.sinks {
		if o, ok := s.(AutoStopObserver); ok {
			if err := o.AutoStopped(ctx, runID, summary); err != nil {
				f.logger.Warn("Auto-stop observer failed", zap.Error(err))
			}
		}
	}
}
