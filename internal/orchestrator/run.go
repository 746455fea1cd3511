package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/cobol"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/scanner"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/testgen"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/translate"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/validation"
)

// runJob executes one job end to end. Scan failures are job-fatal; unit
// failures are isolated and reflected in the final status only.
func (o *Orchestrator) runJob(ctx context.Context, jobID uuid.UUID) {
	job, err := o.store.UpdateJob(ctx, jobID, func(j *store.Job) error {
		now := time.Now().UTC()
		j.Status = store.JobStatusRunning
		j.CurrentStage = string(store.StageScan)
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		return
	}
	o.emitJob(job, "job started")

	snapshotPath, err := o.fetcher.Fetch(ctx, job.RepoRef, job.Branch)
	if err != nil {
		o.failJob(ctx, jobID, err)
		return
	}

	inventory, err := scanner.Scan(job.RepoRef, snapshotPath)
	if err != nil {
		o.failJob(ctx, jobID, err)
		return
	}

	units := make([]*store.Unit, 0, len(inventory.Units))
	now := time.Now().UTC()
	for _, desc := range inventory.Units {
		units = append(units, &store.Unit{
			ID:         uuid.New(),
			JobID:      jobID,
			SourcePath: desc.Path,
			Name:       desc.Name,
			Status:     store.UnitPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	if err := o.store.CreateUnits(ctx, units); err != nil {
		o.failJob(ctx, jobID, err)
		return
	}
	o.refreshProgress(ctx, jobID)

	sem := semaphore.NewWeighted(int64(o.cfg.Workers))
	g, groupCtx := errgroup.WithContext(ctx)
	for _, unit := range units {
		unit := unit
		g.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return nil // cancelled before this unit was scheduled
			}
			defer sem.Release(1)
			// Acquire can succeed on a done context when a permit is free.
			if groupCtx.Err() != nil {
				return nil
			}
			o.processUnit(groupCtx, unit.ID, filepath.Join(snapshotPath, filepath.FromSlash(unit.SourcePath)))
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		o.cancelJobRecord(jobID)
		return
	}
	_ = o.finalizeIfDone(ctx, jobID)
}

func (o *Orchestrator) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	if ctx.Err() != nil {
		o.cancelJobRecord(jobID)
		return
	}
	job, err := o.store.UpdateJob(ctx, jobID, func(j *store.Job) error {
		now := time.Now().UTC()
		j.Status = store.JobStatusFailed
		j.LastError = cause.Error()
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		return
	}
	o.emitJob(job, cause.Error())
}

// cancelJobRecord finalizes a job whose context was cancelled. It uses a
// fresh context since the job's own is already done.
func (o *Orchestrator) cancelJobRecord(jobID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	o.rewindInterruptedUnits(ctx, jobID)
	job, err := o.store.UpdateJob(ctx, jobID, func(j *store.Job) error {
		now := time.Now().UTC()
		j.Status = store.JobStatusCancelled
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		return
	}
	o.emitJob(job, "job cancelled")
}

// cancelRewind maps each transient status to the durable status preceding
// the interrupted stage.
var cancelRewind = map[store.UnitStatus]struct {
	to    store.UnitStatus
	stage store.Stage
}{
	store.UnitParsing:     {store.UnitPending, store.StageParse},
	store.UnitTranslating: {store.UnitParsed, store.StageTranslate},
	store.UnitTesting:     {store.UnitTranslated, store.StageTestGen},
	store.UnitValidating:  {store.UnitTranslated, store.StageValidate},
}

// rewindInterruptedUnits settles units a cancellation caught mid-stage: each
// goes back to its last durable status with the interruption recorded, so no
// unit is ever left in a transient state.
func (o *Orchestrator) rewindInterruptedUnits(ctx context.Context, jobID uuid.UUID) {
	units, err := o.store.ListUnits(ctx, jobID)
	if err != nil {
		return
	}
	for i := range units {
		rw, ok := cancelRewind[units[i].Status]
		if !ok {
			continue
		}
		settled, terr := o.store.TransitionUnit(ctx, units[i].ID, units[i].Status, rw.to, func(u *store.Unit) {
			recordOutcome(u, rw.stage, "cancelled", nil)
		})
		if terr != nil {
			continue
		}
		o.emitUnit(settled, "stage interrupted by cancellation")
	}
}

// processUnit walks one unit through the state machine until it reaches a
// terminal status, AWAITING_REVIEW, or the job is cancelled.
func (o *Orchestrator) processUnit(ctx context.Context, unitID uuid.UUID, sourcePath string) {
	program, ok := o.parseStage(ctx, unitID, sourcePath)
	if !ok {
		return
	}

	// Compiler diagnostics from a failed validation feed the next
	// translation attempt.
	diagnostics := ""

translating:
	for ctx.Err() == nil {
		translated, next := o.translateStage(ctx, unitID, program, diagnostics)
		if next == stageRetry {
			continue
		}
		if next == stageStop {
			return
		}

		for ctx.Err() == nil {
			tests := o.testgenStage(ctx, unitID, program, translated)
			if tests == nil {
				return
			}

			outcome, diags := o.validateStage(ctx, unitID, translated, tests)
			switch outcome {
			case validateRetryTranslate:
				diagnostics = diags
				continue translating
			case validateRetryTests:
				// Re-synthesize against the same translation.
				continue
			default:
				return
			}
		}
		return
	}
}

type stageOutcome int

const (
	stageContinue stageOutcome = iota
	stageRetry
	stageStop
)

// parseStage moves PENDING -> PARSING -> PARSED, writing the IR artifact.
// Parsing is deterministic, so a ParseError is terminal for the unit.
func (o *Orchestrator) parseStage(ctx context.Context, unitID uuid.UUID, sourcePath string) (*cobol.Program, bool) {
	unit, err := o.store.TransitionUnit(ctx, unitID, store.UnitPending, store.UnitParsing, func(u *store.Unit) {
		bumpAttempt(u, store.StageParse)
	})
	if err != nil {
		return nil, false
	}
	o.emitUnit(unit, "parsing")

	source, err := os.ReadFile(sourcePath)
	if err != nil {
		o.terminalUnit(ctx, unitID, store.UnitParsing, store.UnitFailed, store.StageParse, fmt.Errorf("source unreadable: %w", err))
		return nil, false
	}

	program, err := cobol.Parse(unit.SourcePath, string(source))
	if err != nil {
		o.terminalUnit(ctx, unitID, store.UnitParsing, store.UnitFailed, store.StageParse, err)
		return nil, false
	}

	ir, err := json.MarshalIndent(program, "", "  ")
	if err != nil {
		o.terminalUnit(ctx, unitID, store.UnitParsing, store.UnitFailed, store.StageParse, err)
		return nil, false
	}
	attempt := unit.StageAttempts(store.StageParse)
	if _, err := o.store.WriteArtifact(ctx, unitID, store.ArtifactIR, attempt, ir); err != nil {
		o.terminalUnit(ctx, unitID, store.UnitParsing, store.UnitFailed, store.StageParse, err)
		return nil, false
	}

	unit, err = o.store.TransitionUnit(ctx, unitID, store.UnitParsing, store.UnitParsed, func(u *store.Unit) {
		recordOutcome(u, store.StageParse, "ok", nil)
	})
	if err != nil {
		return nil, false
	}
	o.emitUnit(unit, "parsed")
	o.refreshProgress(ctx, unit.JobID)
	return program, true
}

// translateStage moves PARSED -> TRANSLATING -> TRANSLATED. Failures retry
// back to PARSED until the attempt cap, then escalate to manual review.
func (o *Orchestrator) translateStage(ctx context.Context, unitID uuid.UUID, program *cobol.Program, diagnostics string) (*translate.Result, stageOutcome) {
	unit, err := o.store.TransitionUnit(ctx, unitID, store.UnitParsed, store.UnitTranslating, func(u *store.Unit) {
		bumpAttempt(u, store.StageTranslate)
	})
	if err != nil {
		return nil, stageStop
	}
	o.emitUnit(unit, "translating")

	stageCtx, cancel := o.stageContext(ctx)
	result, err := translate.Translate(stageCtx, unit.SourcePath, program, translate.Options{
		Package:      o.cfg.JavaPackage,
		Oracle:       o.oracle,
		ExtraContext: diagnostics,
	})
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return nil, stageStop
		}
		if unit.StageAttempts(store.StageTranslate) >= o.cfg.AttemptCap {
			o.terminalUnit(ctx, unitID, store.UnitTranslating, store.UnitNeedsReview, store.StageTranslate, err)
			return nil, stageStop
		}
		back, terr := o.store.TransitionUnit(ctx, unitID, store.UnitTranslating, store.UnitParsed, func(u *store.Unit) {
			recordOutcome(u, store.StageTranslate, "retry", err)
		})
		if terr != nil {
			return nil, stageStop
		}
		o.emitUnit(back, "translation retry: "+err.Error())
		return nil, stageRetry
	}

	attempt := unit.StageAttempts(store.StageTranslate)
	if _, werr := o.store.WriteArtifact(ctx, unitID, store.ArtifactTargetSource, attempt, []byte(result.Source)); werr != nil {
		o.terminalUnit(ctx, unitID, store.UnitTranslating, store.UnitFailed, store.StageTranslate, werr)
		return nil, stageStop
	}

	unit, err = o.store.TransitionUnit(ctx, unitID, store.UnitTranslating, store.UnitTranslated, func(u *store.Unit) {
		recordOutcome(u, store.StageTranslate, "ok", nil)
	})
	if err != nil {
		return nil, stageStop
	}
	o.emitUnit(unit, "translated")
	o.refreshProgress(ctx, unit.JobID)
	return result, stageContinue
}

// testgenStage moves TRANSLATED -> TESTING -> VALIDATING. Synthesis never
// fails; degraded coverage is recorded in the attempt history.
func (o *Orchestrator) testgenStage(ctx context.Context, unitID uuid.UUID, program *cobol.Program, translated *translate.Result) *testgen.Result {
	unit, err := o.store.TransitionUnit(ctx, unitID, store.UnitTranslated, store.UnitTesting, func(u *store.Unit) {
		bumpAttempt(u, store.StageTestGen)
	})
	if err != nil {
		return nil
	}
	o.emitUnit(unit, "synthesizing tests")

	tests := testgen.Synthesize(program, translated, testgen.Options{})

	attempt := unit.StageAttempts(store.StageTestGen)
	if _, werr := o.store.WriteArtifact(ctx, unitID, store.ArtifactTestSource, attempt, []byte(tests.Source)); werr != nil {
		o.terminalUnit(ctx, unitID, store.UnitTesting, store.UnitFailed, store.StageTestGen, werr)
		return nil
	}

	outcome := "ok"
	if tests.Degraded {
		outcome = "degraded"
	}
	unit, err = o.store.TransitionUnit(ctx, unitID, store.UnitTesting, store.UnitValidating, func(u *store.Unit) {
		recordOutcome(u, store.StageTestGen, outcome, nil)
		// Entering VALIDATING is one validation attempt; the report artifact
		// for this run is keyed on it.
		bumpAttempt(u, store.StageValidate)
	})
	if err != nil {
		return nil
	}
	o.emitUnit(unit, "tests synthesized")
	o.refreshProgress(ctx, unit.JobID)
	return tests
}

type validateOutcome int

const (
	validateDone validateOutcome = iota
	validateRetryTranslate
	validateRetryTests
)

// validateStage runs validation from VALIDATING and settles the unit: PASS
// goes to PASSED (or AWAITING_REVIEW), compile failures retry translation,
// test failures retry synthesis, exhausted retries escalate.
func (o *Orchestrator) validateStage(ctx context.Context, unitID uuid.UUID, translated *translate.Result, tests *testgen.Result) (validateOutcome, string) {
	unit, err := o.store.GetUnit(ctx, unitID)
	if err != nil || unit.Status != store.UnitValidating {
		return validateDone, ""
	}

	stageCtx, cancel := o.stageContext(ctx)
	report, verr := validation.Validate(stageCtx, o.runner, validation.Input{
		Unit:          unit.SourcePath,
		ClassName:     translated.ClassName,
		TestClassName: tests.ClassName,
		Source:        translated.Source,
		TestSource:    tests.Source,
	})
	cancel()

	if report != nil {
		if payload, merr := json.MarshalIndent(report, "", "  "); merr == nil {
			attempt := unit.StageAttempts(store.StageValidate)
			if _, werr := o.store.WriteArtifact(ctx, unitID, store.ArtifactValidationReport, attempt, payload); werr != nil {
				o.terminalUnit(ctx, unitID, store.UnitValidating, store.UnitFailed, store.StageValidate, werr)
				return validateDone, ""
			}
		}
	}

	if verr != nil {
		if ctx.Err() != nil {
			return validateDone, ""
		}
		var compErr *validation.CompileFailure
		if errors.As(verr, &compErr) {
			if unit.StageAttempts(store.StageTranslate) >= o.cfg.AttemptCap {
				o.terminalUnit(ctx, unitID, store.UnitValidating, store.UnitNeedsReview, store.StageValidate, verr)
				return validateDone, ""
			}
			back, terr := o.store.TransitionUnit(ctx, unitID, store.UnitValidating, store.UnitParsed, func(u *store.Unit) {
				recordOutcome(u, store.StageValidate, "compile failure", verr)
			})
			if terr != nil {
				return validateDone, ""
			}
			o.emitUnit(back, "compile failure, retranslating")
			return validateRetryTranslate, compErr.Diagnostics
		}

		var testErr *validation.TestFailure
		if errors.As(verr, &testErr) {
			if unit.StageAttempts(store.StageTestGen) >= o.cfg.AttemptCap {
				o.terminalUnit(ctx, unitID, store.UnitValidating, store.UnitNeedsReview, store.StageValidate, verr)
				return validateDone, ""
			}
			back, terr := o.store.TransitionUnit(ctx, unitID, store.UnitValidating, store.UnitTranslated, func(u *store.Unit) {
				recordOutcome(u, store.StageValidate, "test failure", verr)
			})
			if terr != nil {
				return validateDone, ""
			}
			o.emitUnit(back, "test failure, resynthesizing tests")
			return validateRetryTests, ""
		}

		o.terminalUnit(ctx, unitID, store.UnitValidating, store.UnitFailed, store.StageValidate, verr)
		return validateDone, ""
	}

	switch report.Verdict {
	case validation.VerdictPass:
		to := store.UnitPassed
		message := "passed"
		if o.cfg.ReviewRequired {
			to = store.UnitAwaitingReview
			message = "awaiting review"
		}
		settled, terr := o.store.TransitionUnit(ctx, unitID, store.UnitValidating, to, func(u *store.Unit) {
			recordOutcome(u, store.StageValidate, "pass", nil)
		})
		if terr != nil {
			return validateDone, ""
		}
		o.emitUnit(settled, message)
		o.refreshProgress(ctx, settled.JobID)
	case validation.VerdictInconclusive:
		// The toolchain could not decide, so neither can a retry.
		o.terminalUnit(ctx, unitID, store.UnitValidating, store.UnitNeedsReview, store.StageValidate,
			fmt.Errorf("validation inconclusive: %s", report.Notes))
	}
	return validateDone, ""
}

// terminalUnit settles a unit in a terminal status and records the cause.
func (o *Orchestrator) terminalUnit(ctx context.Context, unitID uuid.UUID, from, to store.UnitStatus, stage store.Stage, cause error) {
	unit, err := o.store.TransitionUnit(ctx, unitID, from, to, func(u *store.Unit) {
		recordOutcome(u, stage, "error", cause)
		if cause != nil {
			u.LastError = cause.Error()
		}
	})
	if err != nil {
		return
	}
	message := string(to)
	if cause != nil {
		message = cause.Error()
	}
	o.emitUnit(unit, message)
	o.refreshProgress(ctx, unit.JobID)
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.StageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.cfg.StageTimeout)
}

func bumpAttempt(u *store.Unit, stage store.Stage) {
	if u.Attempts == nil {
		u.Attempts = make(map[store.Stage]int)
	}
	u.Attempts[stage]++
}

func recordOutcome(u *store.Unit, stage store.Stage, outcome string, cause error) {
	rec := store.AttemptRecord{
		Stage:   stage,
		Attempt: u.StageAttempts(stage),
		Outcome: outcome,
		At:      time.Now().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
		u.LastError = cause.Error()
	}
	u.History = append(u.History, rec)
}

// refreshProgress recomputes job progress as the mean completion fraction of
// its units.
func (o *Orchestrator) refreshProgress(ctx context.Context, jobID uuid.UUID) {
	units, err := o.store.ListUnits(ctx, jobID)
	if err != nil || len(units) == 0 {
		return
	}
	total := 0.0
	for _, u := range units {
		total += u.Status.CompletionFraction()
	}
	progress := int(total / float64(len(units)) * 100)

	job, err := o.store.UpdateJob(ctx, jobID, func(j *store.Job) error {
		if j.Status != store.JobStatusRunning {
			return nil
		}
		j.Progress = progress
		return nil
	})
	if err != nil {
		return
	}
	o.emitJob(job, "")
}

// finalizeIfDone settles the job status once no unit has automated work
// left. Units awaiting review keep the job running.
func (o *Orchestrator) finalizeIfDone(ctx context.Context, jobID uuid.UUID) error {
	units, err := o.store.ListUnits(ctx, jobID)
	if err != nil {
		return err
	}

	metrics := store.JobMetrics{UnitsTotal: len(units)}
	for _, u := range units {
		switch u.Status {
		case store.UnitPassed:
			metrics.UnitsPassed++
		case store.UnitFailed:
			metrics.UnitsFailed++
		case store.UnitNeedsReview:
			metrics.UnitsNeedsReview++
		default:
			// Still in flight or awaiting review.
			return nil
		}
	}

	status := store.JobStatusCompleted
	if metrics.UnitsFailed > 0 || metrics.UnitsNeedsReview > 0 {
		status = store.JobStatusCompletedWithIssues
	}

	job, err := o.store.UpdateJob(ctx, jobID, func(j *store.Job) error {
		if j.Status != store.JobStatusRunning {
			return nil
		}
		now := time.Now().UTC()
		j.Status = status
		j.Progress = 100
		j.CurrentStage = ""
		j.Metrics = &metrics
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		return err
	}
	o.emitJob(job, "job finished")
	return nil
}
