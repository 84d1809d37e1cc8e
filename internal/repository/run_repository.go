// internal/repository/run_repository.go
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lab-rig-service/internal/database"
	"lab-rig-service/internal/model"
)

const runColumns = `id, name, author, tubing_size, config, state, ticks, running_seconds,
	created_at, started_at, ended_at`

// runRepository implements RunRepository interface
type runRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *database.DB, logger *zap.Logger) RunRepository {
	return &runRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a freshly configured run
func (r *runRepository) Create(ctx context.Context, run *model.Run) error {
	query := `
		INSERT INTO experiment_runs (
			id, name, author, tubing_size, config, state, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Details.Name, run.Details.Author,
		decimal.NewFromFloat(run.Details.TubingSize), run.Config, run.State, run.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create run", zap.Error(err), zap.String("run_id", run.ID.String()))
		return fmt.Errorf("failed to create run: %w", err)
	}

	r.logger.Info("Run created", zap.String("run_id", run.ID.String()), zap.String("name", run.Details.Name))
	return nil
}

// UpdateState records a controller transition
func (r *runRepository) UpdateState(ctx context.Context, id uuid.UUID, state model.ExperimentState) error {
	result, err := r.db.ExecContext(ctx, `UPDATE experiment_runs SET state = $2 WHERE id = $1`, id, state)
	if err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}
	return expectRow(result, "run", id)
}

// MarkStarted stamps the first start of a run; later starts keep the first timestamp
func (r *runRepository) MarkStarted(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE experiment_runs SET started_at = COALESCE(started_at, $2) WHERE id = $1`,
		id, startedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark run started: %w", err)
	}
	return expectRow(result, "run", id)
}

// Finish stores the summary of an ended run
func (r *runRepository) Finish(ctx context.Context, run *model.Run) error {
	query := `
		UPDATE experiment_runs
		SET state = $2, ticks = $3, running_seconds = $4,
			started_at = COALESCE(started_at, $5), ended_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		run.ID, run.State, run.Ticks, durationToSeconds(run.RunningTime),
		run.StartedAt, run.EndedAt,
	)
	if err != nil {
		r.logger.Error("Failed to finish run", zap.Error(err), zap.String("run_id", run.ID.String()))
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return expectRow(result, "run", run.ID)
}

// GetByID retrieves a run by its UUID
func (r *runRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM experiment_runs WHERE id = $1`, runColumns)

	run, err := scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		r.logger.Error("Failed to get run", zap.Error(err), zap.String("run_id", id.String()))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// List retrieves runs newest first
func (r *runRepository) List(ctx context.Context, filter *RunFilter) ([]*model.Run, int, error) {
	if filter == nil {
		filter = &RunFilter{}
	}
	filter.normalize()

	whereConditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.State != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("state = $%d", argIndex))
		args = append(args, *filter.State)
		argIndex++
	}

	if filter.Name != nil {
		whereConditions = append(whereConditions, fmt.Sprintf("name ILIKE $%d", argIndex))
		args = append(args, "%"+*filter.Name+"%")
		argIndex++
	}

	whereClause := ""
	if len(whereConditions) > 0 {
		whereClause = "WHERE " + strings.Join(whereConditions, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM experiment_runs %s", whereClause)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count runs: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM experiment_runs %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, runColumns, whereClause, argIndex, argIndex+1)
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, total, nil
}

// AddReading stores one poll tick
func (r *runRepository) AddReading(ctx context.Context, bundle *model.ReadingBundle) error {
	query := `
		INSERT INTO experiment_readings (
			run_id, tick, recorded_at, elapsed_seconds,
			voltage, current, pump_info, flow_rate, stirrer_speed, health
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var pumpInfo sql.NullString
	if bundle.PumpInfo != nil {
		pumpInfo = sql.NullString{String: *bundle.PumpInfo, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		bundle.RunID, bundle.Tick, bundle.Timestamp, durationToSeconds(bundle.Elapsed),
		toNullDecimal(bundle.Voltage), toNullDecimal(bundle.Current), pumpInfo,
		toNullDecimal(bundle.FlowRate), toNullDecimal(bundle.StirrerSpeed), bundle.Health,
	)
	if err != nil {
		r.logger.Error("Failed to store reading",
			zap.Error(err),
			zap.String("run_id", bundle.RunID.String()),
			zap.Int("tick", bundle.Tick),
		)
		return fmt.Errorf("failed to store reading: %w", err)
	}
	return nil
}

// ListReadings returns the readings of a run in tick order. A limit of zero or less
// returns all of them.
func (r *runRepository) ListReadings(ctx context.Context, runID uuid.UUID, limit int) ([]*model.ReadingBundle, error) {
	query := `
		SELECT run_id, tick, recorded_at, elapsed_seconds,
			   voltage, current, pump_info, flow_rate, stirrer_speed, health
		FROM experiment_readings
		WHERE run_id = $1
		ORDER BY tick
	`
	args := []interface{}{runID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	var bundles []*model.ReadingBundle
	for rows.Next() {
		var (
			bundle                                   model.ReadingBundle
			elapsed                                  decimal.Decimal
			voltage, current, flowRate, stirrerSpeed decimal.NullDecimal
			pumpInfo                                 sql.NullString
			health                                   []byte
		)

		if err := rows.Scan(
			&bundle.RunID, &bundle.Tick, &bundle.Timestamp, &elapsed,
			&voltage, &current, &pumpInfo, &flowRate, &stirrerSpeed, &health,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}

		bundle.Elapsed = secondsToDuration(elapsed)
		bundle.Voltage = fromNullDecimal(voltage)
		bundle.Current = fromNullDecimal(current)
		bundle.FlowRate = fromNullDecimal(flowRate)
		bundle.StirrerSpeed = fromNullDecimal(stirrerSpeed)
		if pumpInfo.Valid {
			bundle.PumpInfo = &pumpInfo.String
		}
		if len(health) > 0 {
			bundle.Health = &model.HealthReport{}
			if err := bundle.Health.Scan(health); err != nil {
				return nil, fmt.Errorf("failed to decode health report: %w", err)
			}
		}

		bundles = append(bundles, &bundle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate readings: %w", err)
	}

	return bundles, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var (
		run       model.Run
		tubing    decimal.NullDecimal
		running   decimal.Decimal
		startedAt sql.NullTime
		endedAt   sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.Details.Name, &run.Details.Author, &tubing, &run.Config,
		&run.State, &run.Ticks, &running, &run.CreatedAt, &startedAt, &endedAt,
	)
	if err != nil {
		return nil, err
	}

	if tubing.Valid {
		run.Details.TubingSize = tubing.Decimal.InexactFloat64()
	}
	run.RunningTime = secondsToDuration(running)
	if startedAt.Valid {
		run.StartedAt = &startedAt.Time
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

func expectRow(result sql.Result, entity string, id interface{}) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
	}
	return nil
}
