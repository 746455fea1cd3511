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

// CreateJob inserts a new job row.
func (db *DB) CreateJob(ctx context.Context, job *store.Job) error {
	metrics, err := marshalNullable(job.Metrics)
	if err != nil {
		return err
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO migration_jobs
		 (id, repo_ref, branch, target_stack, status, progress, current_stage, last_error, metrics, created_at, updated_at, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, job.RepoRef, job.Branch, job.TargetStack, job.Status, job.Progress,
		job.CurrentStage, job.LastError, metrics, job.CreatedAt, job.UpdatedAt,
		job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (db *DB) GetJob(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, repo_ref, branch, target_stack, status, progress, current_stage, last_error, metrics, created_at, updated_at, started_at, completed_at
		 FROM migration_jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// ListJobs retrieves jobs, newest first, honoring the optional filters.
func (db *DB) ListJobs(ctx context.Context, filters store.JobFilters) ([]store.Job, error) {
	query := `SELECT id, repo_ref, branch, target_stack, status, progress, current_stage, last_error, metrics, created_at, updated_at, started_at, completed_at
		 FROM migration_jobs`
	args := []any{}
	if filters.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, filters.Status)
	}
	query += ` ORDER BY created_at DESC`
	if filters.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filters.Limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// UpdateJob applies fn to the job row inside a transaction, holding a row
// lock so concurrent updates serialize.
func (db *DB) UpdateJob(ctx context.Context, jobID uuid.UUID, fn func(*store.Job) error) (*store.Job, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT id, repo_ref, branch, target_stack, status, progress, current_stage, last_error, metrics, created_at, updated_at, started_at, completed_at
		 FROM migration_jobs WHERE id = $1 FOR UPDATE`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return nil, err
	}

	if err := fn(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now().UTC()

	metrics, err := marshalNullable(job.Metrics)
	if err != nil {
		return nil, err
	}
	_, err = tx.Exec(ctx,
		`UPDATE migration_jobs
		 SET status = $2, progress = $3, current_stage = $4, last_error = $5, metrics = $6, updated_at = $7, started_at = $8, completed_at = $9
		 WHERE id = $1`,
		job.ID, job.Status, job.Progress, job.CurrentStage, job.LastError, metrics,
		job.UpdatedAt, job.StartedAt, job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit job update: %w", err)
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*store.Job, error) {
	var job store.Job
	var metrics []byte
	err := row.Scan(&job.ID, &job.RepoRef, &job.Branch, &job.TargetStack, &job.Status,
		&job.Progress, &job.CurrentStage, &job.LastError, &metrics,
		&job.CreatedAt, &job.UpdatedAt, &job.StartedAt, &job.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	if len(metrics) > 0 {
		job.Metrics = &store.JobMetrics{}
		if err := json.Unmarshal(metrics, job.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode job metrics: %w", err)
		}
	}
	return &job, nil
}

func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	switch m := v.(type) {
	case *store.JobMetrics:
		if m == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal: %w", err)
	}
	return data, nil
}
