// internal/repository/interfaces.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"lab-rig-service/internal/model"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// RunRepository defines experiment run data access operations
type RunRepository interface {
	// Run lifecycle
	Create(ctx context.Context, run *model.Run) error
	UpdateState(ctx context.Context, id uuid.UUID, state model.ExperimentState) error
	MarkStarted(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, run *model.Run) error

	// Queries
	GetByID(ctx context.Context, id uuid.UUID) (*model.Run, error)
	List(ctx context.Context, filter *RunFilter) ([]*model.Run, int, error)

	// Readings
	AddReading(ctx context.Context, bundle *model.ReadingBundle) error
	ListReadings(ctx context.Context, runID uuid.UUID, limit int) ([]*model.ReadingBundle, error)
}

// ProfileRepository defines save profile data access operations
type ProfileRepository interface {
	Get(ctx context.Context, slot int) (*model.SaveProfile, error)
	List(ctx context.Context) ([]*model.SaveProfile, error)
	Save(ctx context.Context, profile *model.SaveProfile) error
	Delete(ctx context.Context, slot int) error
}

// RunFilter represents run listing filters
type RunFilter struct {
	State   *model.ExperimentState `json:"state,omitempty"`
	Name    *string                `json:"name,omitempty"`
	Page    int                    `json:"page"`
	PerPage int                    `json:"per_page"`
}

// normalize applies paging defaults
func (f *RunFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
}
