// Package store defines the job/unit/artifact status store the orchestrator
// depends on, plus an in-memory implementation. The store is the single
// source of truth for pipeline state; every status change goes through an
// atomic transition so concurrent unit completions never lose updates.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a job, unit or artifact does not exist.
var ErrNotFound = errors.New("not found")

// ConflictError reports a failed compare-and-set transition: the unit was not
// in the expected state when the update was applied.
type ConflictError struct {
	UnitID   uuid.UUID
	Expected UnitStatus
	Actual   UnitStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unit %s: expected status %s, found %s", e.UnitID, e.Expected, e.Actual)
}

// JobFilters holds optional filters for listing jobs.
type JobFilters struct {
	Status string
	Limit  int
}

// Store is the persistence boundary for pipeline state. The orchestrator is
// the only writer; read operations back the REST surface.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error)
	ListJobs(ctx context.Context, filters JobFilters) ([]Job, error)
	// UpdateJob applies fn to the current job row atomically.
	UpdateJob(ctx context.Context, jobID uuid.UUID, fn func(*Job) error) (*Job, error)

	CreateUnits(ctx context.Context, units []*Unit) error
	GetUnit(ctx context.Context, unitID uuid.UUID) (*Unit, error)
	ListUnits(ctx context.Context, jobID uuid.UUID) ([]Unit, error)
	// TransitionUnit moves a unit from one status to another with
	// compare-and-set semantics. update, if non-nil, mutates the unit
	// (attempt counters, history, last error) inside the same atomic step.
	// A *ConflictError is returned when the unit is not in from.
	TransitionUnit(ctx context.Context, unitID uuid.UUID, from, to UnitStatus, update func(*Unit)) (*Unit, error)

	// WriteArtifact persists content and returns the stored artifact with its
	// locator and checksum filled in. Storage is append-only.
	WriteArtifact(ctx context.Context, unitID uuid.UUID, kind ArtifactKind, attempt int, content []byte) (*Artifact, error)
	ListArtifacts(ctx context.Context, unitID uuid.UUID) ([]Artifact, error)
	ReadArtifact(ctx context.Context, artifactID uuid.UUID) ([]byte, error)
}
