package server

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// handlePreview streams a live blob. Revoked ids are gone.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	blob, ok := s.blobs.Lookup(id)
	if !ok {
		http.Error(w, "preview not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", blob.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Content-Disposition", "inline; filename=\""+blob.Name+"\"")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(blob.Data)
}

type healthResponse struct {
	Status string `json:"status"`
	Live   int    `json:"live"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeAPIJSON(w, healthResponse{Status: "ok", Live: s.blobs.Live()})
}

func writeAPIJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
