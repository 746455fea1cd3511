package store

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus constants. Values are part of the external contract and are
// surfaced verbatim over the REST API.
const (
	JobStatusPending             = "PENDING"
	JobStatusRunning             = "RUNNING"
	JobStatusCompleted           = "COMPLETED"
	JobStatusCompletedWithIssues = "COMPLETED_WITH_ISSUES"
	JobStatusFailed              = "FAILED"
	JobStatusCancelled           = "CANCELLED"
)

// UnitStatus is the per-unit state within the migration state machine.
type UnitStatus string

// Unit states. The happy path is PENDING -> PARSING -> PARSED -> TRANSLATING
// -> TRANSLATED -> TESTING -> VALIDATING -> PASSED. FAILED, PASSED and
// NEEDS_MANUAL_REVIEW are terminal; AWAITING_REVIEW is paused pending a human
// decision.
const (
	UnitPending        UnitStatus = "PENDING"
	UnitParsing        UnitStatus = "PARSING"
	UnitParsed         UnitStatus = "PARSED"
	UnitTranslating    UnitStatus = "TRANSLATING"
	UnitTranslated     UnitStatus = "TRANSLATED"
	UnitTesting        UnitStatus = "TESTING"
	UnitValidating     UnitStatus = "VALIDATING"
	UnitPassed         UnitStatus = "PASSED"
	UnitFailed         UnitStatus = "FAILED"
	UnitNeedsReview    UnitStatus = "NEEDS_MANUAL_REVIEW"
	UnitAwaitingReview UnitStatus = "AWAITING_REVIEW"
)

// Terminal reports whether no further automated transition applies.
func (s UnitStatus) Terminal() bool {
	switch s {
	case UnitPassed, UnitFailed, UnitNeedsReview:
		return true
	}
	return false
}

// CompletionFraction maps a unit status to how much of the stage sequence it
// has durably completed. Job progress is the mean of these, never set
// independently.
func (s UnitStatus) CompletionFraction() float64 {
	switch s {
	case UnitPending, UnitParsing:
		return 0.0
	case UnitParsed, UnitTranslating:
		return 0.25
	case UnitTranslated, UnitTesting:
		return 0.5
	case UnitValidating, UnitAwaitingReview:
		return 0.75
	case UnitPassed, UnitFailed, UnitNeedsReview:
		return 1.0
	}
	return 0.0
}

// Stage names one pipeline phase.
type Stage string

const (
	StageScan      Stage = "scan"
	StageParse     Stage = "parse"
	StageTranslate Stage = "translate"
	StageTestGen   Stage = "testgen"
	StageValidate  Stage = "validate"
)

// ArtifactKind identifies what a produced file is.
type ArtifactKind string

const (
	ArtifactIR               ArtifactKind = "IR"
	ArtifactTargetSource     ArtifactKind = "TARGET_SOURCE"
	ArtifactTestSource       ArtifactKind = "TEST_SOURCE"
	ArtifactValidationReport ArtifactKind = "VALIDATION_REPORT"
)

// JobMetrics holds the final counters published when a job reaches a terminal
// status.
type JobMetrics struct {
	UnitsTotal       int `json:"units_total"`
	UnitsPassed      int `json:"units_passed"`
	UnitsFailed      int `json:"units_failed"`
	UnitsNeedsReview int `json:"units_needs_review"`
}

// Job is one migration request over a repository reference.
type Job struct {
	ID           uuid.UUID   `json:"id"`
	RepoRef      string      `json:"repo_ref"`
	Branch       string      `json:"branch"`
	TargetStack  string      `json:"target_stack"`
	Status       string      `json:"status"`
	Progress     int         `json:"progress"`
	CurrentStage string      `json:"current_stage,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
	Metrics      *JobMetrics `json:"metrics,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// AttemptRecord is one entry in a unit's ordered stage attempt history.
type AttemptRecord struct {
	Stage   Stage     `json:"stage"`
	Attempt int       `json:"attempt"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Unit is one COBOL compilation unit discovered within a job.
type Unit struct {
	ID         uuid.UUID     `json:"id"`
	JobID      uuid.UUID     `json:"job_id"`
	SourcePath string        `json:"source_path"`
	Name       string        `json:"name"`
	Status     UnitStatus    `json:"status"`
	Attempts   map[Stage]int `json:"attempts,omitempty"`
	History    []AttemptRecord `json:"history,omitempty"`
	LastError  string        `json:"last_error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// StageAttempts returns the attempt counter for a stage, zero if none yet.
func (u *Unit) StageAttempts(stage Stage) int {
	if u.Attempts == nil {
		return 0
	}
	return u.Attempts[stage]
}

// Artifact is one produced file. Artifacts are append-only: a retry writes a
// new version with a higher attempt number, it never overwrites.
type Artifact struct {
	ID        uuid.UUID    `json:"id"`
	UnitID    uuid.UUID    `json:"unit_id"`
	Kind      ArtifactKind `json:"kind"`
	Locator   string       `json:"locator"`
	Checksum  string       `json:"checksum"`
	Attempt   int          `json:"attempt"`
	CreatedAt time.Time    `json:"created_at"`
}
