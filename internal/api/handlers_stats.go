package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleStoreStats(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		jsonError(w, "store stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"url":   s.cfg.GraphstoreURL,
		"stats": s.store.Stats(),
	})
}
