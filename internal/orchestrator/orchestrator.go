// Package orchestrator drives migration jobs through the pipeline: fetch,
// scan, then per-unit parse, translate, test synthesis and validation. Units
// progress independently so one failure never blocks its siblings; all state
// lives in the store and every transition is a compare-and-set.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/repo"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/translate"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/validation"
)

// Config tunes one orchestrator instance.
type Config struct {
	// Workers bounds concurrent unit processing per job.
	Workers int
	// AttemptCap is the maximum attempts per retryable stage before a unit is
	// escalated to NEEDS_MANUAL_REVIEW.
	AttemptCap int
	// StageTimeout bounds each stage invocation. Zero disables the bound.
	StageTimeout time.Duration
	// ReviewRequired pauses passing units in AWAITING_REVIEW until a human
	// resolves them.
	ReviewRequired bool
	// JavaPackage overrides the target package of translated sources.
	JavaPackage string
}

const (
	DefaultWorkers    = 4
	DefaultAttemptCap = 3
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.AttemptCap <= 0 {
		c.AttemptCap = DefaultAttemptCap
	}
	return c
}

// EventType distinguishes progress event payloads.
type EventType string

const (
	EventJob  EventType = "job"
	EventUnit EventType = "unit"
)

// Event is one progress notification. Job events carry aggregate progress;
// unit events carry the unit's new status.
type Event struct {
	Type     EventType  `json:"type"`
	JobID    uuid.UUID  `json:"job_id"`
	UnitID   *uuid.UUID `json:"unit_id,omitempty"`
	Status   string     `json:"status"`
	Stage    string     `json:"stage,omitempty"`
	Progress int        `json:"progress"`
	Message  string     `json:"message,omitempty"`
	At       time.Time  `json:"at"`
}

// Orchestrator owns job lifecycles. Construct with New.
type Orchestrator struct {
	store   store.Store
	fetcher repo.Fetcher
	oracle  translate.Oracle
	runner  validation.ToolRunner
	cfg     Config

	// OnProgress, when set, receives every job and unit event. Callbacks must
	// not block; set before the first SubmitJob.
	OnProgress func(Event)

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	running sync.WaitGroup
}

// New builds an orchestrator. fetcher resolves repository references to local
// snapshots; oracle may be nil for structural-only translation; runner
// decides validation verdicts.
func New(st store.Store, fetcher repo.Fetcher, oracle translate.Oracle, runner validation.ToolRunner, cfg Config) *Orchestrator {
	return &Orchestrator{
		store:   st,
		fetcher: fetcher,
		oracle:  oracle,
		runner:  runner,
		cfg:     cfg.withDefaults(),
		cancels: make(map[uuid.UUID]context.CancelFunc),
	}
}

// SubmitRequest describes a new migration job.
type SubmitRequest struct {
	RepoRef     string
	Branch      string
	TargetStack string
}

// SubmitJob records a new job and starts processing it in the background.
// The returned job is in PENDING; progress is observable through GetJob,
// ListUnits and OnProgress.
func (o *Orchestrator) SubmitJob(ctx context.Context, req SubmitRequest) (*store.Job, error) {
	if req.RepoRef == "" {
		return nil, fmt.Errorf("repo reference is required")
	}
	branch := req.Branch
	if branch == "" {
		branch = "main"
	}
	targetStack := req.TargetStack
	if targetStack == "" {
		targetStack = "java17"
	}

	now := time.Now().UTC()
	job := &store.Job{
		ID:          uuid.New(),
		RepoRef:     req.RepoRef,
		Branch:      branch,
		TargetStack: targetStack,
		Status:      store.JobStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	// The job outlives the submitting request, so it runs on its own context.
	runCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.cancels[job.ID] = cancel
	o.mu.Unlock()

	o.running.Add(1)
	go func() {
		defer o.running.Done()
		defer func() {
			o.mu.Lock()
			delete(o.cancels, job.ID)
			o.mu.Unlock()
		}()
		o.runJob(runCtx, job.ID)
	}()

	return job, nil
}

// CancelJob requests cancellation of a running job. In-flight stage work is
// interrupted; completed unit results are kept.
func (o *Orchestrator) CancelJob(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	switch job.Status {
	case store.JobStatusCompleted, store.JobStatusCompletedWithIssues,
		store.JobStatusFailed, store.JobStatusCancelled:
		return fmt.Errorf("job %s already terminal (%s)", jobID, job.Status)
	}

	o.mu.Lock()
	cancel, ok := o.cancels[jobID]
	o.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	// Not running in this process (e.g. PENDING after a restart): finalize
	// directly.
	_, err = o.store.UpdateJob(ctx, jobID, func(j *store.Job) error {
		j.Status = store.JobStatusCancelled
		now := time.Now().UTC()
		j.CompletedAt = &now
		return nil
	})
	return err
}

// GetJob returns the current job row.
func (o *Orchestrator) GetJob(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	return o.store.GetJob(ctx, jobID)
}

// ListJobs returns jobs matching the filters.
func (o *Orchestrator) ListJobs(ctx context.Context, filters store.JobFilters) ([]store.Job, error) {
	return o.store.ListJobs(ctx, filters)
}

// ListUnits returns a job's units ordered by source path.
func (o *Orchestrator) ListUnits(ctx context.Context, jobID uuid.UUID) ([]store.Unit, error) {
	return o.store.ListUnits(ctx, jobID)
}

// GetUnit returns the current unit row.
func (o *Orchestrator) GetUnit(ctx context.Context, unitID uuid.UUID) (*store.Unit, error) {
	return o.store.GetUnit(ctx, unitID)
}

// GetArtifacts returns a unit's artifacts in creation order.
func (o *Orchestrator) GetArtifacts(ctx context.Context, unitID uuid.UUID) ([]store.Artifact, error) {
	return o.store.ListArtifacts(ctx, unitID)
}

// ReadArtifact returns the stored content of one artifact.
func (o *Orchestrator) ReadArtifact(ctx context.Context, artifactID uuid.UUID) ([]byte, error) {
	return o.store.ReadArtifact(ctx, artifactID)
}

// ResolveReview resolves a unit paused in AWAITING_REVIEW. Approval marks it
// PASSED; rejection escalates it to NEEDS_MANUAL_REVIEW. The owning job is
// re-finalized in case this was its last open unit.
func (o *Orchestrator) ResolveReview(ctx context.Context, unitID uuid.UUID, approved bool) (*store.Unit, error) {
	to := store.UnitPassed
	outcome := "approved"
	if !approved {
		to = store.UnitNeedsReview
		outcome = "rejected"
	}
	unit, err := o.store.TransitionUnit(ctx, unitID, store.UnitAwaitingReview, to, func(u *store.Unit) {
		u.History = append(u.History, store.AttemptRecord{
			Stage:   store.StageValidate,
			Attempt: u.StageAttempts(store.StageValidate),
			Outcome: outcome,
			At:      time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	o.emitUnit(unit, "review "+outcome)
	o.refreshProgress(ctx, unit.JobID)
	if err := o.finalizeIfDone(ctx, unit.JobID); err != nil {
		return nil, err
	}
	return unit, nil
}

// Wait blocks until all background jobs have finished. Intended for tests
// and for draining on shutdown.
func (o *Orchestrator) Wait() {
	o.running.Wait()
}

func (o *Orchestrator) emit(ev Event) {
	if o.OnProgress != nil {
		o.OnProgress(ev)
	}
}

func (o *Orchestrator) emitUnit(unit *store.Unit, message string) {
	id := unit.ID
	o.emit(Event{
		Type:     EventUnit,
		JobID:    unit.JobID,
		UnitID:   &id,
		Status:   string(unit.Status),
		Progress: int(unit.Status.CompletionFraction() * 100),
		Message:  message,
		At:       time.Now().UTC(),
	})
}

func (o *Orchestrator) emitJob(job *store.Job, message string) {
	o.emit(Event{
		Type:     EventJob,
		JobID:    job.ID,
		Status:   job.Status,
		Stage:    job.CurrentStage,
		Progress: job.Progress,
		Message:  message,
		At:       time.Now().UTC(),
	})
}
