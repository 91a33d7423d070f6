package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the body of /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
	Busy   bool   `json:"busy"`
}

var serverStartTime = time.Now()

type busyReporter interface {
	Busy() bool
}

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(serverStartTime).Round(time.Second).String(),
	}
	if b, ok := s.pipeline.(busyReporter); ok {
		resp.Busy = b.Busy()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.respondError(w, http.StatusNotFound, "Run ledger is not available", nil)
		return
	}

	runs, err := s.runs.Recent(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		s.log.Error("Failed to list runs", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"runs":    runs,
	})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("Failed to encode JSON response", "error", err)
	}
}

// respondError writes a {success: false} envelope. err, when set, is exposed
// in the "error" field.
func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	body := map[string]interface{}{
		"success": false,
		"message": message,
	}
	if err != nil {
		body["error"] = err.Error()
	}
	s.respondJSON(w, status, body)
}
