// Package db provides PostgreSQL-backed persistence for jobs, units and
// artifacts. It implements store.Store, so the orchestrator and server are
// indifferent to whether state lives here or in memory.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*DB)(nil)

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist yet.
func (db *DB) EnsureSchema(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS migration_jobs (
			id UUID PRIMARY KEY,
			repo_ref TEXT NOT NULL,
			branch TEXT NOT NULL,
			target_stack TEXT NOT NULL,
			status TEXT NOT NULL,
			progress INT NOT NULL DEFAULT 0,
			current_stage TEXT NOT NULL DEFAULT '',
			last_error TEXT NOT NULL DEFAULT '',
			metrics JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		);

		CREATE TABLE IF NOT EXISTS migration_units (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES migration_jobs(id) ON DELETE CASCADE,
			source_path TEXT NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			attempts JSONB,
			history JSONB,
			last_error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			UNIQUE (job_id, source_path)
		);

		CREATE TABLE IF NOT EXISTS unit_artifacts (
			id UUID PRIMARY KEY,
			unit_id UUID NOT NULL REFERENCES migration_units(id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			locator TEXT NOT NULL,
			checksum TEXT NOT NULL,
			attempt INT NOT NULL,
			content BYTEA NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (unit_id, kind, attempt)
		);

		CREATE INDEX IF NOT EXISTS idx_units_job ON migration_units(job_id);
		CREATE INDEX IF NOT EXISTS idx_artifacts_unit ON unit_artifacts(unit_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
