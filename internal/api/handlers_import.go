package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dgallion1/xmlgest/internal/ingest"
	"github.com/dgallion1/xmlgest/internal/pipeline"
	"github.com/dgallion1/xmlgest/internal/ulid"
	"github.com/go-chi/chi/v5"
)

// importRequest is the body for POST /api/import.
type importRequest struct {
	Locator string              `json:"locator"`
	Entries string              `json:"entries"`
	Options ingest.GraphOptions `json:"options"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	req := importRequest{Options: ingest.DefaultGraphOptions()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Locator == "" {
		jsonError(w, "locator is required", http.StatusBadRequest)
		return
	}
	req.Options.Limits = s.limits()

	now := time.Now()
	job := &pipeline.Job{
		ID:        ulid.New(),
		Locator:   req.Locator,
		EntryGlob: req.Entries,
		Status:    pipeline.StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetOptions(req.Options)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":     job.ID,
		"status":     job.Snapshot().Status,
		"status_url": "/api/import/" + job.ID,
	})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}
