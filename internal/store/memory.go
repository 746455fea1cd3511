package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-memory Store. It backs tests and single-process CLI runs
// where no database is configured.
type Memory struct {
	mu        sync.RWMutex
	jobs      map[uuid.UUID]*Job
	units     map[uuid.UUID]*Unit
	artifacts map[uuid.UUID]*Artifact
	contents  map[uuid.UUID][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:      make(map[uuid.UUID]*Job),
		units:     make(map[uuid.UUID]*Unit),
		artifacts: make(map[uuid.UUID]*Artifact),
		contents:  make(map[uuid.UUID][]byte),
	}
}

func (m *Memory) CreateJob(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *Memory) GetJob(_ context.Context, jobID uuid.UUID) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (m *Memory) ListJobs(_ context.Context, filters JobFilters) ([]Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var jobs []Job
	for _, job := range m.jobs {
		if filters.Status != "" && job.Status != filters.Status {
			continue
		}
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if filters.Limit > 0 && len(jobs) > filters.Limit {
		jobs = jobs[:filters.Limit]
	}
	return jobs, nil
}

func (m *Memory) UpdateJob(_ context.Context, jobID uuid.UUID, fn func(*Job) error) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	if err := fn(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now()
	cp := *job
	return &cp, nil
}

func (m *Memory) CreateUnits(_ context.Context, units []*Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, unit := range units {
		if unit.ID == uuid.Nil {
			unit.ID = uuid.New()
		}
		unit.CreatedAt = now
		unit.UpdatedAt = now
		if unit.Status == "" {
			unit.Status = UnitPending
		}
		cp := *unit
		m.units[unit.ID] = &cp
	}
	return nil
}

func (m *Memory) GetUnit(_ context.Context, unitID uuid.UUID) (*Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	unit, ok := m.units[unitID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := cloneUnit(unit)
	return &cp, nil
}

func (m *Memory) ListUnits(_ context.Context, jobID uuid.UUID) ([]Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var units []Unit
	for _, unit := range m.units {
		if unit.JobID == jobID {
			units = append(units, cloneUnit(unit))
		}
	}
	// Stable enumeration: units were discovered in lexicographic path order.
	sort.Slice(units, func(i, j int) bool { return units[i].SourcePath < units[j].SourcePath })
	return units, nil
}

func (m *Memory) TransitionUnit(_ context.Context, unitID uuid.UUID, from, to UnitStatus, update func(*Unit)) (*Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	unit, ok := m.units[unitID]
	if !ok {
		return nil, ErrNotFound
	}
	if unit.Status != from {
		return nil, &ConflictError{UnitID: unitID, Expected: from, Actual: unit.Status}
	}
	unit.Status = to
	if update != nil {
		update(unit)
	}
	unit.UpdatedAt = time.Now()
	cp := cloneUnit(unit)
	return &cp, nil
}

func (m *Memory) WriteArtifact(_ context.Context, unitID uuid.UUID, kind ArtifactKind, attempt int, content []byte) (*Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.units[unitID]; !ok {
		return nil, ErrNotFound
	}
	// Append-only: a retry must carry a fresh attempt number, matching the
	// database store's unique constraint.
	for _, a := range m.artifacts {
		if a.UnitID == unitID && a.Kind == kind && a.Attempt == attempt {
			return nil, fmt.Errorf("artifact %s attempt %d already written for unit %s", kind, attempt, unitID)
		}
	}
	sum := sha256.Sum256(content)
	artifact := &Artifact{
		ID:        uuid.New(),
		UnitID:    unitID,
		Kind:      kind,
		Checksum:  hex.EncodeToString(sum[:]),
		Attempt:   attempt,
		CreatedAt: time.Now(),
	}
	artifact.Locator = fmt.Sprintf("mem://units/%s/%s/%d", unitID, kind, attempt)

	stored := make([]byte, len(content))
	copy(stored, content)
	m.contents[artifact.ID] = stored
	cp := *artifact
	m.artifacts[artifact.ID] = &cp
	return artifact, nil
}

func (m *Memory) ListArtifacts(_ context.Context, unitID uuid.UUID) ([]Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var artifacts []Artifact
	for _, a := range m.artifacts {
		if a.UnitID == unitID {
			artifacts = append(artifacts, *a)
		}
	}
	sort.Slice(artifacts, func(i, j int) bool {
		if artifacts[i].CreatedAt.Equal(artifacts[j].CreatedAt) {
			return artifacts[i].Locator < artifacts[j].Locator
		}
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

func (m *Memory) ReadArtifact(_ context.Context, artifactID uuid.UUID) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.contents[artifactID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(content))
	copy(cp, content)
	return cp, nil
}

func cloneUnit(u *Unit) Unit {
	cp := *u
	if u.Attempts != nil {
		cp.Attempts = make(map[Stage]int, len(u.Attempts))
		for k, v := range u.Attempts {
			cp.Attempts[k] = v
		}
	}
	if u.History != nil {
		cp.History = append([]AttemptRecord(nil), u.History...)
	}
	return cp
}
