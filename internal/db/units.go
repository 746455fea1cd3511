package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
)

// CreateUnits inserts a batch of units in one transaction.
func (db *DB) CreateUnits(ctx context.Context, units []*store.Unit) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, unit := range units {
		attempts, history, err := marshalUnitState(unit)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO migration_units
			 (id, job_id, source_path, name, status, attempts, history, last_error, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			unit.ID, unit.JobID, unit.SourcePath, unit.Name, unit.Status,
			attempts, history, unit.LastError, unit.CreatedAt, unit.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create unit %s: %w", unit.SourcePath, err)
		}
	}
	return tx.Commit(ctx)
}

// GetUnit retrieves a unit by ID.
func (db *DB) GetUnit(ctx context.Context, unitID uuid.UUID) (*store.Unit, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, job_id, source_path, name, status, attempts, history, last_error, created_at, updated_at
		 FROM migration_units WHERE id = $1`, unitID)
	return scanUnit(row)
}

// ListUnits retrieves a job's units ordered by source path.
func (db *DB) ListUnits(ctx context.Context, jobID uuid.UUID) ([]store.Unit, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_id, source_path, name, status, attempts, history, last_error, created_at, updated_at
		 FROM migration_units WHERE job_id = $1 ORDER BY source_path`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []store.Unit
	for rows.Next() {
		unit, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *unit)
	}
	return units, rows.Err()
}

// TransitionUnit performs a compare-and-set status transition. The row lock
// plus the status check make the transition atomic; a unit not in the
// expected status yields *store.ConflictError.
func (db *DB) TransitionUnit(ctx context.Context, unitID uuid.UUID, from, to store.UnitStatus, update func(*store.Unit)) (*store.Unit, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT id, job_id, source_path, name, status, attempts, history, last_error, created_at, updated_at
		 FROM migration_units WHERE id = $1 FOR UPDATE`, unitID)
	unit, err := scanUnit(row)
	if err != nil {
		return nil, err
	}

	if unit.Status != from {
		return nil, &store.ConflictError{UnitID: unitID, Expected: from, Actual: unit.Status}
	}

	unit.Status = to
	if update != nil {
		update(unit)
	}
	unit.UpdatedAt = time.Now().UTC()

	attempts, history, err := marshalUnitState(unit)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE migration_units
		 SET status = $2, attempts = $3, history = $4, last_error = $5, updated_at = $6
		 WHERE id = $1`,
		unit.ID, unit.Status, attempts, history, unit.LastError, unit.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update unit: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit unit transition: %w", err)
	}
	return unit, nil
}

func scanUnit(row rowScanner) (*store.Unit, error) {
	var unit store.Unit
	var attempts, history []byte
	err := row.Scan(&unit.ID, &unit.JobID, &unit.SourcePath, &unit.Name, &unit.Status,
		&attempts, &history, &unit.LastError, &unit.CreatedAt, &unit.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan unit: %w", err)
	}
	if len(attempts) > 0 {
		if err := json.Unmarshal(attempts, &unit.Attempts); err != nil {
			return nil, fmt.Errorf("failed to decode unit attempts: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &unit.History); err != nil {
			return nil, fmt.Errorf("failed to decode unit history: %w", err)
		}
	}
	return &unit, nil
}

func marshalUnitState(unit *store.Unit) (attempts, history []byte, err error) {
	if unit.Attempts != nil {
		if attempts, err = json.Marshal(unit.Attempts); err != nil {
			return nil, nil, fmt.Errorf("failed to marshal unit attempts: %w", err)
		}
	}
	if unit.History != nil {
		if history, err = json.Marshal(unit.History); err != nil {
			return nil, nil, fmt.Errorf("failed to marshal unit history: %w", err)
		}
	}
	return attempts, history, nil
}
