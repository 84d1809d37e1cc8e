// internal/handler/interfaces.go
package handler

import (
	"context"

	"github.com/google/uuid"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/repository"
	"lab-rig-service/internal/service"
)

// ExperimentRunner is the controller surface exposed over HTTP
type ExperimentRunner interface {
	Configure(ctx context.Context, details model.ExperimentDetails, cfg model.ExperimentConfig) (*model.HealthReport, error)
	Start() error
	Stop() error
	Reset() error
	Status() service.ExperimentStatus
}

// InstrumentManager handles instrument extras
type InstrumentManager interface {
	ListInstruments() []service.InstrumentInfo
	Identify(ctx context.Context, kind model.InstrumentKind) (*model.Identity, error)
	TareMFC(ctx context.Context) error
}

// ProfileManager stores save profiles
type ProfileManager interface {
	List(ctx context.Context) ([]*model.SaveProfile, error)
	Load(ctx context.Context, slot int) (*model.SaveProfile, error)
	Overwrite(ctx context.Context, slot int, details model.ExperimentDetails, cfg model.ExperimentConfig) (*model.SaveProfile, error)
	Clear(ctx context.Context, slot int) error
}

// RunHistory reads stored runs
type RunHistory interface {
	ListRuns(ctx context.Context, filter *repository.RunFilter) ([]*model.Run, int, error)
	GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error)
	Readings(ctx context.Context, id uuid.UUID, limit int) ([]*model.ReadingBundle, error)
}
