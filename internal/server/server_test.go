package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/orchestrator"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/repo"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
)

const payrollSource = `IDENTIFICATION DIVISION.
PROGRAM-ID. PAYROLL.
DATA DIVISION.
WORKING-STORAGE SECTION.
01 WS-HOURS PIC 9(3) VALUE 40.
PROCEDURE DIVISION.
MAIN-PARA.
    DISPLAY 'DONE'.
    STOP RUN.
`

type passRunner struct{}

func (passRunner) Compile(context.Context, string, []string) (string, error) { return "", nil }
func (passRunner) RunTests(context.Context, string, string) (string, error) {
	return "tests successful", nil
}

func newTestServer(t *testing.T, cfg orchestrator.Config) (*Server, *orchestrator.Orchestrator) {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	orch := orchestrator.New(store.NewMemory(), repo.LocalFetcher{}, nil, passRunner{}, cfg)
	return New(Config{}, orch), orch
}

func snapshotDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payroll.cbl"), []byte(payrollSource), 0644))
	return dir
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func submitAndFinish(t *testing.T, s *Server, orch *orchestrator.Orchestrator, dir string) store.Job {
	t.Helper()
	rec := doJSON(t, s.Handler(), "POST", "/jobs", SubmitJobRequest{Repo: dir})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job store.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	orch.Wait()
	return job
}

func TestSubmitJobAndGet(t *testing.T) {
	s, orch := newTestServer(t, orchestrator.Config{})
	job := submitAndFinish(t, s, orch, snapshotDir(t))

	rec := doJSON(t, s.Handler(), "GET", "/jobs/"+job.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got store.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, store.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestSubmitJobValidation(t *testing.T) {
	s, _ := newTestServer(t, orchestrator.Config{})

	rec := doJSON(t, s.Handler(), "POST", "/jobs", SubmitJobRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s.Handler(), "POST", "/jobs", SubmitJobRequest{Repo: "x", TargetStack: "cobol85"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest("POST", "/jobs", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListJobsFilter(t *testing.T) {
	s, orch := newTestServer(t, orchestrator.Config{})
	submitAndFinish(t, s, orch, snapshotDir(t))

	rec := doJSON(t, s.Handler(), "GET", "/jobs?status=COMPLETED", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = doJSON(t, s.Handler(), "GET", "/jobs?status=FAILED", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}

func TestGetJobNotFound(t *testing.T) {
	s, _ := newTestServer(t, orchestrator.Config{})

	rec := doJSON(t, s.Handler(), "GET", "/jobs/5bba7c2e-95ee-45c9-b5f2-5d3aa91d1637", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s.Handler(), "GET", "/jobs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnitsAndArtifacts(t *testing.T) {
	s, orch := newTestServer(t, orchestrator.Config{})
	job := submitAndFinish(t, s, orch, snapshotDir(t))

	rec := doJSON(t, s.Handler(), "GET", "/jobs/"+job.ID.String()+"/units", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var unitsResp struct {
		Units []store.Unit `json:"units"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unitsResp))
	require.Equal(t, 1, unitsResp.Count)
	unit := unitsResp.Units[0]
	assert.Equal(t, store.UnitPassed, unit.Status)

	rec = doJSON(t, s.Handler(), "GET", "/units/"+unit.ID.String()+"/artifacts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var artResp struct {
		Artifacts []store.Artifact `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &artResp))
	require.NotEmpty(t, artResp.Artifacts)

	rec = doJSON(t, s.Handler(), "GET", "/artifacts/"+artResp.Artifacts[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestArtifactsUnknownUnitNotFound(t *testing.T) {
	s, _ := newTestServer(t, orchestrator.Config{})

	rec := doJSON(t, s.Handler(), "GET", "/units/"+uuid.NewString()+"/artifacts", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	s, orch := newTestServer(t, orchestrator.Config{})
	job := submitAndFinish(t, s, orch, snapshotDir(t))

	rec := doJSON(t, s.Handler(), "POST", "/jobs/"+job.ID.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewFlow(t *testing.T) {
	s, orch := newTestServer(t, orchestrator.Config{ReviewRequired: true})
	job := submitAndFinish(t, s, orch, snapshotDir(t))

	units, err := orch.ListUnits(context.Background(), job.ID)
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.Equal(t, store.UnitAwaitingReview, units[0].Status)

	approved := true
	rec := doJSON(t, s.Handler(), "POST", "/units/"+units[0].ID.String()+"/review", ReviewRequest{Approved: &approved})
	require.Equal(t, http.StatusOK, rec.Code)

	var unit store.Unit
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unit))
	assert.Equal(t, store.UnitPassed, unit.Status)

	// A second review of the same unit conflicts.
	rec = doJSON(t, s.Handler(), "POST", "/units/"+units[0].ID.String()+"/review", ReviewRequest{Approved: &approved})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReviewValidation(t *testing.T) {
	s, _ := newTestServer(t, orchestrator.Config{})
	rec := doJSON(t, s.Handler(), "POST", "/units/5bba7c2e-95ee-45c9-b5f2-5d3aa91d1637/review", ReviewRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, orchestrator.Config{})
	rec := doJSON(t, s.Handler(), "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestJobEventsSnapshotForFinishedJob(t *testing.T) {
	s, orch := newTestServer(t, orchestrator.Config{})
	job := submitAndFinish(t, s, orch, snapshotDir(t))

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/jobs/" + job.ID.String() + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// A terminal job yields a snapshot event and then the stream ends.
	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: snapshot\n", line)

	data, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(data, "data: "), "got %q", data)
	assert.Contains(t, data, fmt.Sprintf("%q", job.ID.String()))
}

func TestRateLimitJobSubmission(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "true")
	orch := orchestrator.New(store.NewMemory(), repo.LocalFetcher{}, nil, passRunner{}, orchestrator.Config{})
	s := New(Config{}, orch)

	dir := snapshotDir(t)
	// The submission burst is 2 per client.
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := doJSON(t, s.Handler(), "POST", "/jobs", SubmitJobRequest{Repo: dir})
		codes = append(codes, rec.Code)
	}
	orch.Wait()

	assert.Equal(t, http.StatusAccepted, codes[0])
	assert.Equal(t, http.StatusAccepted, codes[1])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])
}
