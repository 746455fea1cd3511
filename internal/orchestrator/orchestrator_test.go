package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/repo"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/validation"
)

const payrollSource = `IDENTIFICATION DIVISION.
PROGRAM-ID. PAYROLL.
DATA DIVISION.
WORKING-STORAGE SECTION.
01 WS-HOURS PIC 9(3) VALUE 40.
01 WS-GROSS-PAY PIC 9(7)V99 VALUE 0.
PROCEDURE DIVISION.
MAIN-PARA.
    PERFORM CALC-PAY.
    DISPLAY 'DONE'.
    STOP RUN.
CALC-PAY.
    COMPUTE WS-GROSS-PAY = WS-HOURS * 12.
`

const ledgerSource = `IDENTIFICATION DIVISION.
PROGRAM-ID. LEDGER.
DATA DIVISION.
WORKING-STORAGE SECTION.
01 WS-TOTAL PIC 9(5) VALUE 0.
PROCEDURE DIVISION.
MAIN-PARA.
    ADD 10 TO WS-TOTAL.
    STOP RUN.
`

const brokenSource = `just some text that is not COBOL at all`

// passRunner validates everything successfully without a JDK.
type passRunner struct{}

func (passRunner) Compile(context.Context, string, []string) (string, error) { return "", nil }
func (passRunner) RunTests(context.Context, string, string) (string, error) {
	return "tests successful", nil
}

// scriptedRunner fails compilation a fixed number of times per unit, keyed by
// the translated class present in the source files.
type scriptedRunner struct {
	mu           sync.Mutex
	failuresLeft int
	diagnostics  string
	compiles     int
}

func (r *scriptedRunner) Compile(_ context.Context, _ string, sources []string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compiles++
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return r.diagnostics, fmt.Errorf("javac: exit status 1")
	}
	return "", nil
}

func (r *scriptedRunner) RunTests(context.Context, string, string) (string, error) {
	return "tests successful", nil
}

func writeSnapshot(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func newTestOrchestrator(runner validation.ToolRunner, cfg Config) (*Orchestrator, *store.Memory) {
	mem := store.NewMemory()
	return New(mem, repo.LocalFetcher{}, nil, runner, cfg), mem
}

func runToCompletion(t *testing.T, o *Orchestrator, snapshot string) *store.Job {
	t.Helper()
	job, err := o.SubmitJob(context.Background(), SubmitRequest{RepoRef: snapshot})
	require.NoError(t, err)
	o.Wait()
	final, err := o.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	return final
}

func TestJobHappyPath(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{
		"src/payroll.cbl": payrollSource,
		"src/ledger.cbl":  ledgerSource,
	})
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job := runToCompletion(t, o, snapshot)

	assert.Equal(t, store.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.Metrics)
	assert.Equal(t, 2, job.Metrics.UnitsTotal)
	assert.Equal(t, 2, job.Metrics.UnitsPassed)
	assert.NotNil(t, job.CompletedAt)

	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, units, 2)
	// Lexicographic by source path.
	assert.Equal(t, "src/ledger.cbl", units[0].SourcePath)
	assert.Equal(t, "src/payroll.cbl", units[1].SourcePath)
	for _, u := range units {
		assert.Equal(t, store.UnitPassed, u.Status)
	}
}

func TestJobArtifactsPerUnit(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job := runToCompletion(t, o, snapshot)
	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, units, 1)

	artifacts, err := o.GetArtifacts(context.Background(), units[0].ID)
	require.NoError(t, err)

	kinds := make(map[store.ArtifactKind]int)
	for _, a := range artifacts {
		kinds[a.Kind]++
	}
	assert.Equal(t, 1, kinds[store.ArtifactIR])
	assert.Equal(t, 1, kinds[store.ArtifactTargetSource])
	assert.Equal(t, 1, kinds[store.ArtifactTestSource])
	assert.Equal(t, 1, kinds[store.ArtifactValidationReport])

	content, err := o.ReadArtifact(context.Background(), artifacts[0].ID)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

func TestPartialFailureIsolation(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{
		"good.cbl":   ledgerSource,
		"broken.cbl": brokenSource,
	})
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job := runToCompletion(t, o, snapshot)

	assert.Equal(t, store.JobStatusCompletedWithIssues, job.Status)
	require.NotNil(t, job.Metrics)
	assert.Equal(t, 1, job.Metrics.UnitsPassed)
	assert.Equal(t, 1, job.Metrics.UnitsFailed)

	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	byPath := map[string]store.Unit{}
	for _, u := range units {
		byPath[u.SourcePath] = u
	}
	assert.Equal(t, store.UnitFailed, byPath["broken.cbl"].Status)
	assert.NotEmpty(t, byPath["broken.cbl"].LastError)
	assert.Equal(t, store.UnitPassed, byPath["good.cbl"].Status)
}

func TestCompileFailureRetriesTranslation(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})
	runner := &scriptedRunner{failuresLeft: 1, diagnostics: "Payroll.java:7: error: ';' expected"}
	o, _ := newTestOrchestrator(runner, Config{})

	job := runToCompletion(t, o, snapshot)

	assert.Equal(t, store.JobStatusCompleted, job.Status)

	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, units, 1)
	unit := units[0]

	assert.Equal(t, store.UnitPassed, unit.Status)
	assert.Equal(t, 2, unit.StageAttempts(store.StageTranslate))

	// A retried translation appends a second TARGET_SOURCE, never overwrites.
	artifacts, err := o.GetArtifacts(context.Background(), unit.ID)
	require.NoError(t, err)
	var targets []store.Artifact
	for _, a := range artifacts {
		if a.Kind == store.ArtifactTargetSource {
			targets = append(targets, a)
		}
	}
	require.Len(t, targets, 2)
	assert.NotEqual(t, targets[0].Locator, targets[1].Locator)
	assert.Equal(t, 1, targets[0].Attempt)
	assert.Equal(t, 2, targets[1].Attempt)
}

func TestValidationReportPerAttempt(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})
	runner := &scriptedRunner{failuresLeft: 1, diagnostics: "Payroll.java:7: error: ';' expected"}
	o, _ := newTestOrchestrator(runner, Config{})

	job := runToCompletion(t, o, snapshot)
	require.Equal(t, store.JobStatusCompleted, job.Status)

	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, 2, units[0].StageAttempts(store.StageValidate))

	// Both validation runs leave a report: the failing first attempt and the
	// passing retry, under distinct attempt numbers and locators.
	artifacts, err := o.GetArtifacts(context.Background(), units[0].ID)
	require.NoError(t, err)
	var reports []store.Artifact
	for _, a := range artifacts {
		if a.Kind == store.ArtifactValidationReport {
			reports = append(reports, a)
		}
	}
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Attempt)
	assert.Equal(t, 2, reports[1].Attempt)
	assert.NotEqual(t, reports[0].Locator, reports[1].Locator)
}

func TestAttemptCapEscalatesToManualReview(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})
	runner := &scriptedRunner{failuresLeft: 100, diagnostics: "error: persistent"}
	o, _ := newTestOrchestrator(runner, Config{AttemptCap: 3})

	job := runToCompletion(t, o, snapshot)

	assert.Equal(t, store.JobStatusCompletedWithIssues, job.Status)
	require.NotNil(t, job.Metrics)
	assert.Equal(t, 1, job.Metrics.UnitsNeedsReview)

	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, store.UnitNeedsReview, units[0].Status)
	assert.Equal(t, 3, units[0].StageAttempts(store.StageTranslate))
	// Compilation was attempted exactly once per translation attempt.
	assert.Equal(t, 3, runner.compiles)
}

func TestScanErrorFailsJob(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"readme.md": "no cobol here"})
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job := runToCompletion(t, o, snapshot)

	assert.Equal(t, store.JobStatusFailed, job.Status)
	assert.Contains(t, job.LastError, "no eligible COBOL source files")
}

func TestUnreachableRepoFailsJob(t *testing.T) {
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job := runToCompletion(t, o, filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, store.JobStatusFailed, job.Status)
	assert.NotEmpty(t, job.LastError)
}

func TestCancelJob(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("unit%02d.cbl", i)] = payrollSource
	}
	snapshot := writeSnapshot(t, files)

	started := make(chan struct{})
	release := make(chan struct{})
	runner := &blockingRunner{started: started, release: release}
	o, _ := newTestOrchestrator(runner, Config{Workers: 1})

	job, err := o.SubmitJob(context.Background(), SubmitRequest{RepoRef: snapshot})
	require.NoError(t, err)

	<-started
	require.NoError(t, o.CancelJob(context.Background(), job.ID))
	o.Wait()
	close(release)

	final, err := o.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusCancelled, final.Status)

	// Never-started units stay PENDING; the unit caught mid-validation is
	// rewound to its last durable status, not left in VALIDATING.
	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	pending := 0
	var interrupted *store.Unit
	for i := range units {
		switch units[i].Status {
		case store.UnitPending:
			pending++
		case store.UnitTranslated:
			interrupted = &units[i]
		default:
			t.Fatalf("unit %s left in status %s after cancellation", units[i].SourcePath, units[i].Status)
		}
	}
	assert.Equal(t, len(units)-1, pending)
	require.NotNil(t, interrupted)
	require.NotEmpty(t, interrupted.History)
	assert.Equal(t, "cancelled", interrupted.History[len(interrupted.History)-1].Outcome)
}

// blockingRunner holds the first validation until released so tests can
// cancel mid-flight.
type blockingRunner struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Compile(ctx context.Context, _ string, _ []string) (string, error) {
	r.once.Do(func() { close(r.started) })
	select {
	case <-r.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "", nil
}

func (r *blockingRunner) RunTests(context.Context, string, string) (string, error) {
	return "tests successful", nil
}

func TestCancelFinishedJobRejected(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job := runToCompletion(t, o, snapshot)
	err := o.CancelJob(context.Background(), job.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already terminal")
}

func TestReviewFlow(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{
		"a.cbl": payrollSource,
		"b.cbl": ledgerSource,
	})
	o, _ := newTestOrchestrator(passRunner{}, Config{ReviewRequired: true})

	job, err := o.SubmitJob(context.Background(), SubmitRequest{RepoRef: snapshot})
	require.NoError(t, err)
	o.Wait()

	// Units pause rather than pass; the job stays open.
	mid, err := o.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusRunning, mid.Status)

	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, units, 2)
	for _, u := range units {
		assert.Equal(t, store.UnitAwaitingReview, u.Status)
	}

	approved, err := o.ResolveReview(context.Background(), units[0].ID, true)
	require.NoError(t, err)
	assert.Equal(t, store.UnitPassed, approved.Status)

	rejected, err := o.ResolveReview(context.Background(), units[1].ID, false)
	require.NoError(t, err)
	assert.Equal(t, store.UnitNeedsReview, rejected.Status)

	final, err := o.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.JobStatusCompletedWithIssues, final.Status)
	require.NotNil(t, final.Metrics)
	assert.Equal(t, 1, final.Metrics.UnitsPassed)
	assert.Equal(t, 1, final.Metrics.UnitsNeedsReview)
}

func TestResolveReviewWrongStateConflicts(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job := runToCompletion(t, o, snapshot)
	units, err := o.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)

	_, err = o.ResolveReview(context.Background(), units[0].ID, true)
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, store.UnitAwaitingReview, conflict.Expected)
}

func TestProgressEvents(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})

	var mu sync.Mutex
	var events []Event
	o, _ := newTestOrchestrator(passRunner{}, Config{})
	o.OnProgress = func(ev Event) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}

	runToCompletion(t, o, snapshot)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)

	var jobProgress []int
	sawUnitPassed := false
	for _, ev := range events {
		if ev.Type == EventJob {
			jobProgress = append(jobProgress, ev.Progress)
		}
		if ev.Type == EventUnit && ev.Status == string(store.UnitPassed) {
			sawUnitPassed = true
		}
	}
	assert.True(t, sawUnitPassed)
	// Job progress never moves backwards.
	for i := 1; i < len(jobProgress); i++ {
		assert.GreaterOrEqual(t, jobProgress[i], jobProgress[i-1])
	}
	assert.Equal(t, 100, jobProgress[len(jobProgress)-1])
}

func TestSubmitJobValidation(t *testing.T) {
	o, _ := newTestOrchestrator(passRunner{}, Config{})
	_, err := o.SubmitJob(context.Background(), SubmitRequest{})
	require.Error(t, err)
}

func TestSubmitJobDefaults(t *testing.T) {
	snapshot := writeSnapshot(t, map[string]string{"payroll.cbl": payrollSource})
	o, _ := newTestOrchestrator(passRunner{}, Config{})

	job, err := o.SubmitJob(context.Background(), SubmitRequest{RepoRef: snapshot})
	require.NoError(t, err)
	assert.Equal(t, "main", job.Branch)
	assert.Equal(t, "java17", job.TargetStack)
	o.Wait()
}
