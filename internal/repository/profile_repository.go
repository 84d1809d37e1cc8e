// internal/repository/profile_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lab-rig-service/internal/database"
	"lab-rig-service/internal/model"
)

// profileRepository implements ProfileRepository interface
type profileRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewProfileRepository creates a new save profile repository
func NewProfileRepository(db *database.DB, logger *zap.Logger) ProfileRepository {
	return &profileRepository{
		db:     db,
		logger: logger,
	}
}

// Get loads one slot
func (r *profileRepository) Get(ctx context.Context, slot int) (*model.SaveProfile, error) {
	query := `
		SELECT slot, name, author, tubing_size, config, updated_at
		FROM save_profiles WHERE slot = $1
	`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, query, slot))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("profile slot %d: %w", slot, ErrNotFound)
		}
		r.logger.Error("Failed to get profile", zap.Error(err), zap.Int("slot", slot))
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return profile, nil
}

// List returns every stored slot in slot order
func (r *profileRepository) List(ctx context.Context) ([]*model.SaveProfile, error) {
	query := `
		SELECT slot, name, author, tubing_size, config, updated_at
		FROM save_profiles ORDER BY slot
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*model.SaveProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate profiles: %w", err)
	}

	return profiles, nil
}

// Save writes a slot, overwriting whatever it held
func (r *profileRepository) Save(ctx context.Context, profile *model.SaveProfile) error {
	query := `
		INSERT INTO save_profiles (slot, name, author, tubing_size, config, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (slot) DO UPDATE SET
			name = EXCLUDED.name,
			author = EXCLUDED.author,
			tubing_size = EXCLUDED.tubing_size,
			config = EXCLUDED.config,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		profile.Slot, profile.Details.Name, profile.Details.Author,
		decimal.NewFromFloat(profile.Details.TubingSize), profile.Config,
	).Scan(&profile.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to save profile", zap.Error(err), zap.Int("slot", profile.Slot))
		return fmt.Errorf("failed to save profile: %w", err)
	}

	r.logger.Info("Profile saved", zap.String("key", profile.Key()))
	return nil
}

// Delete clears a slot
func (r *profileRepository) Delete(ctx context.Context, slot int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM save_profiles WHERE slot = $1`, slot)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	return expectRow(result, "profile slot", slot)
}

func scanProfile(row rowScanner) (*model.SaveProfile, error) {
	var (
		profile model.SaveProfile
		tubing  decimal.NullDecimal
	)

	err := row.Scan(
		&profile.Slot, &profile.Details.Name, &profile.Details.Author,
		&tubing, &profile.Config, &profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if tubing.Valid {
		profile.Details.TubingSize = tubing.Decimal.InexactFloat64()
	}
	return &profile, nil
}
