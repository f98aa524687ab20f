package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/xmlgest/internal/ingest"
	"github.com/dgallion1/xmlgest/internal/parser"
	"github.com/dgallion1/xmlgest/internal/record"
	"github.com/dgallion1/xmlgest/internal/source"
	"github.com/dgallion1/xmlgest/internal/xpath"
)

// loadRequest is the body for POST /api/load. Exactly one of locator or
// xml must be set.
type loadRequest struct {
	Locator string         `json:"locator"`
	XML     string         `json:"xml"`
	Path    string         `json:"path"`
	Options ingest.Options `json:"options"`
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	// Inline documents share the fetch size cap, plus envelope overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFetchBytes+1024*1024)

	req := loadRequest{Options: ingest.DefaultOptions()}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if (req.Locator == "") == (req.XML == "") {
		jsonError(w, "exactly one of locator or xml is required", http.StatusBadRequest)
		return
	}
	if req.Path != "" {
		req.Options.Path = req.Path
	}
	req.Options.Limits = s.limits()

	var records []*record.Record
	var err error
	if req.XML != "" {
		records, err = ingest.Parse(req.XML, req.Options)
	} else {
		records, err = s.loader.Load(r.Context(), req.Locator, req.Options)
	}
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	if records == nil {
		records = []*record.Record{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":   len(records),
		"records": records,
	})
}

// writeLoadError maps engine failures onto HTTP statuses: caller
// mistakes are 400, bad documents are 422, unreachable sources are 502.
func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	var reserved *record.ReservedKeyError
	var syntax *parser.SyntaxError
	var security *parser.SecurityError
	switch {
	case errors.Is(err, xpath.ErrInvalid), errors.As(err, &reserved):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &syntax), errors.As(err, &security):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, source.ErrUnavailable):
		jsonError(w, err.Error(), http.StatusBadGateway)
	default:
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
