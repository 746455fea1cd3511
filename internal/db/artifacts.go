package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
)

// WriteArtifact stores content as a new artifact version. The unique
// (unit_id, kind, attempt) constraint enforces append-only semantics at the
// database level: a retry must carry a fresh attempt number.
func (db *DB) WriteArtifact(ctx context.Context, unitID uuid.UUID, kind store.ArtifactKind, attempt int, content []byte) (*store.Artifact, error) {
	sum := sha256.Sum256(content)
	artifact := &store.Artifact{
		ID:        uuid.New(),
		UnitID:    unitID,
		Kind:      kind,
		Locator:   fmt.Sprintf("pg://unit_artifacts/%s/%s/%d", unitID, kind, attempt),
		Checksum:  hex.EncodeToString(sum[:]),
		Attempt:   attempt,
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO unit_artifacts (id, unit_id, kind, locator, checksum, attempt, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		artifact.ID, artifact.UnitID, artifact.Kind, artifact.Locator,
		artifact.Checksum, artifact.Attempt, content, artifact.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to write artifact %s: %w", kind, err)
	}
	return artifact, nil
}

// ListArtifacts retrieves a unit's artifacts in creation order.
func (db *DB) ListArtifacts(ctx context.Context, unitID uuid.UUID) ([]store.Artifact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, unit_id, kind, locator, checksum, attempt, created_at
		 FROM unit_artifacts WHERE unit_id = $1 ORDER BY created_at, attempt`, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []store.Artifact
	for rows.Next() {
		var a store.Artifact
		if err := rows.Scan(&a.ID, &a.UnitID, &a.Kind, &a.Locator, &a.Checksum, &a.Attempt, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// ReadArtifact retrieves stored artifact content.
func (db *DB) ReadArtifact(ctx context.Context, artifactID uuid.UUID) ([]byte, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM unit_artifacts WHERE id = $1`, artifactID).Scan(&content)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return content, nil
}
