// internal/database/migration.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"lab-rig-service/internal/config"
)

// Migrator handles database migrations
type Migrator struct {
	db     *DB
	logger *zap.Logger
	config *config.DatabaseConfig
}

// NewMigrator creates a new migrator instance
func NewMigrator(db *DB, logger *zap.Logger, config *config.DatabaseConfig) *Migrator {
	return &Migrator{
		db:     db,
		logger: logger,
		config: config,
	}
}

// Up runs all up migrations
func (m *Migrator) Up() error {
	migrator, err := m.createMigrator()
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, _, _ := migrator.Version()
	m.logger.Info("Database migrations completed", zap.Uint("version", version))
	return nil
}

// createMigrator creates a migrate instance on its own connection; closing the
// migrator closes that connection, never the service pool.
func (m *Migrator) createMigrator() (*migrate.Migrate, error) {
	conn, err := sql.Open("postgres", m.config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(conn, &postgres.Config{})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	path := m.config.MigrationsPath
	if path == "" {
		path = "migrations"
	}

	migrationsPath, err := filepath.Abs(path)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to get migrations path: %w", err)
	}

	sourceURL := fmt.Sprintf("file://%s", migrationsPath)

	migrator, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return migrator, nil
}

// PruneReadings deletes per-tick readings of runs that ended before olderThan.
// Run rows are kept.
func (m *Migrator) PruneReadings(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := m.db.ExecContext(ctx, `
		DELETE FROM experiment_readings r
		USING experiment_runs er
		WHERE r.run_id = er.id AND er.ended_at IS NOT NULL AND er.ended_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("prune readings failed: %w", err)
	}

	deleted, _ := result.RowsAffected()
	m.logger.Info("Old readings pruned", zap.Int64("deleted", deleted), zap.Time("older_than", olderThan))
	return deleted, nil
}
