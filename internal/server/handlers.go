package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/LucasHenklain/cobol-to-java-integrated/internal/orchestrator"
	"github.com/LucasHenklain/cobol-to-java-integrated/internal/store"
)

// SubmitJobRequest is the POST /jobs payload.
type SubmitJobRequest struct {
	Repo        string `json:"repo" validate:"required"`
	Branch      string `json:"branch,omitempty"`
	TargetStack string `json:"target_stack,omitempty" validate:"omitempty,oneof=java17 java21"`
}

// ReviewRequest is the POST /units/{id}/review payload.
type ReviewRequest struct {
	Approved *bool  `json:"approved" validate:"required"`
	Reviewer string `json:"reviewer,omitempty" validate:"omitempty,max=200"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.orch.SubmitJob(r.Context(), orchestrator.SubmitRequest{
		RepoRef:     req.Repo,
		Branch:      req.Branch,
		TargetStack: req.TargetStack,
	})
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	filters := store.JobFilters{Status: r.URL.Query().Get("status")}
	jobs, err := s.orch.ListJobs(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"jobs": jobs, "count": len(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	job, err := s.orch.GetJob(r.Context(), jobID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.orch.GetJob(r.Context(), jobID); err != nil {
		s.storeError(w, err)
		return
	}
	units, err := s.orch.ListUnits(r.Context(), jobID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"units": units, "count": len(units)})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := s.orch.CancelJob(r.Context(), jobID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "job not found")
			return
		}
		s.errorResponse(w, http.StatusConflict, err.Error())
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	unitID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	unit, err := s.orch.ResolveReview(r.Context(), unitID, *req.Approved)
	if err != nil {
		var conflict *store.ConflictError
		if errors.As(err, &conflict) {
			s.errorResponse(w, http.StatusConflict, err.Error())
			return
		}
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, unit)
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	unitID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.orch.GetUnit(r.Context(), unitID); err != nil {
		s.storeError(w, err)
		return
	}
	artifacts, err := s.orch.GetArtifacts(r.Context(), unitID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"artifacts": artifacts, "count": len(artifacts)})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	artifactID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	content, err := s.orch.ReadArtifact(r.Context(), artifactID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

// handleJobEvents streams job progress over SSE until the client disconnects
// or the job reaches a terminal status.
func (s *Server) handleJobEvents(w http.ResponseWriter, r *http.Request) {
	jobID, ok := s.pathUUID(w, r, "id")
	if !ok {
		return
	}
	job, err := s.orch.GetJob(r.Context(), jobID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Subscribe before the snapshot so no transition is missed.
	events, cancel := s.broker.subscribe(jobID)
	defer cancel()

	if werr := sse.WriteEvent("snapshot", job); werr != nil {
		return
	}
	if jobTerminal(job.Status) {
		return
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if werr := sse.WriteEvent("heartbeat", map[string]string{"at": time.Now().UTC().Format(time.RFC3339)}); werr != nil {
				return
			}
		case ev, open := <-events:
			if !open {
				return
			}
			if werr := sse.WriteEvent(string(ev.Type), ev); werr != nil {
				return
			}
			if ev.Type == orchestrator.EventJob && jobTerminal(ev.Status) {
				return
			}
		}
	}
}

func jobTerminal(status string) bool {
	switch status {
	case store.JobStatusCompleted, store.JobStatusCompletedWithIssues,
		store.JobStatusFailed, store.JobStatusCancelled:
		return true
	}
	return false
}

func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		s.errorResponse(w, http.StatusNotFound, "not found")
		return
	}
	s.errorResponse(w, http.StatusInternalServerError, err.Error())
}
