package server

import (
	"errors"
	"net/http"
	"strings"
	"wisgen/internal/pipeline"
)

// triggerError answers a failed trigger, with 409 while another run is active.
func (s *Server) triggerError(w http.ResponseWriter, err error, message string) {
	if errors.Is(err, pipeline.ErrBusy) {
		s.respondError(w, http.StatusConflict, "A pipeline run is already in progress", nil)
		return
	}
	s.log.Error(message, "error", err)
	s.respondError(w, http.StatusInternalServerError, message, err)
}

func (s *Server) requirePipeline(w http.ResponseWriter) bool {
	if s.pipeline == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Pipeline is not configured", nil)
		return false
	}
	return true
}

// handlePull handles POST /api/newsletters/pull. An optional ids query
// parameter (comma separated) restricts the run to those messages.
func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if !s.requirePipeline(w) {
		return
	}

	var ids []string
	if raw := r.URL.Query().Get("ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}

	result, err := s.pipeline.RunDaily(r.Context(), ids)
	if err != nil {
		s.triggerError(w, err, "Failed to pull newsletters")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Newsletters pulled and processed successfully",
		"date":     result.Date,
		"path":     result.Path,
		"insights": len(result.Insights),
		"stats":    result.Stats,
	})
}

// handleAnalyze handles POST /api/insights/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.requirePipeline(w) {
		return
	}

	report, err := s.pipeline.RunTrends(r.Context())
	if err != nil {
		s.triggerError(w, err, "Failed to analyze insights")
		return
	}
	if report == nil {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "No insights available to analyze",
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Insights analysis generated successfully",
		"report":  report,
	})
}

// handleProcess handles POST /api/newsletters/process
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !s.requirePipeline(w) {
		return
	}

	result, err := s.pipeline.RunProcess(r.Context())
	if err != nil {
		s.triggerError(w, err, "Failed to process newsletters")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Newsletters processed successfully",
		"result":  result,
	})
}
