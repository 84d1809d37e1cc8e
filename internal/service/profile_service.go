// internal/service/profile_service.go
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"lab-rig-service/internal/model"
	"lab-rig-service/internal/repository"
	"lab-rig-service/internal/utils"
)

// ProfileSlots is the number of save slots offered to the operator
const ProfileSlots = 5

// ErrInvalidSlot is returned for slots outside 1..ProfileSlots
var ErrInvalidSlot = errors.New("invalid profile slot")

// ProfileService stores reusable experiment parameter sets
type ProfileService struct {
	profiles repository.ProfileRepository
	logger   *utils.ServiceLogger
}

// NewProfileService creates a new profile service
func NewProfileService(profiles repository.ProfileRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		logger:   utils.NewServiceLogger(logger, "profile-service"),
	}
}

func checkSlot(slot int) error {
	if slot < 1 || slot > ProfileSlots {
		return fmt.Errorf("%w: %d (expected 1 to %d)", ErrInvalidSlot, slot, ProfileSlots)
	}
	return nil
}

// List returns every stored profile
func (s *ProfileService) List(ctx context.Context) ([]*model.SaveProfile, error) {
	return s.profiles.List(ctx)
}

// Load returns the profile in slot
func (s *ProfileService) Load(ctx context.Context, slot int) (*model.SaveProfile, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	return s.profiles.Get(ctx, slot)
}

// Overwrite replaces the content of slot
func (s *ProfileService) Overwrite(ctx context.Context, slot int, details model.ExperimentDetails, cfg model.ExperimentConfig) (*model.SaveProfile, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if err := ValidateExperimentConfig(cfg); err != nil {
		return nil, err
	}

	profile := &model.SaveProfile{Slot: slot, Details: details, Config: cfg}
	if err := s.profiles.Save(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.Info("Profile overwritten", zap.String("key", profile.Key()))
	return profile, nil
}

// Clear empties slot
func (s *ProfileService) Clear(ctx context.Context, slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return s.profiles.Delete(ctx, slot)
}
