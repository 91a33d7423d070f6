package server

import (
	"net/http"
	"time"
	"wisgen/internal/core"
	"wisgen/internal/store"

	"github.com/go-chi/chi/v5"
)

// handleLatestInsights handles GET /api/insights with the latest trend report
func (s *Server) handleLatestInsights(w http.ResponseWriter, r *http.Request) {
	report, ok, err := s.reports.LatestTrend()
	if err != nil {
		s.log.Error("Failed to read trend report", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to fetch insights", err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "No insights analysis found", nil)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"filename": report.Filename,
		"format":   "html",
		"content":  report.Content,
	})
}

// handleListDaily handles GET /api/insights/daily
func (s *Server) handleListDaily(w http.ResponseWriter, r *http.Request) {
	dates, err := s.batches.Dates()
	if err != nil {
		s.log.Error("Failed to list daily batches", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list daily insights", err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	// Newest first
	for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
		dates[i], dates[j] = dates[j], dates[i]
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"dates":   dates,
	})
}

// handleGetDaily handles GET /api/insights/daily/{date}
func (s *Server) handleGetDaily(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(core.DateLayout, date); err != nil {
		s.respondError(w, http.StatusBadRequest, "Date must be formatted as YYYY-MM-DD", nil)
		return
	}

	batch, err := s.batches.Load(date)
	if err != nil {
		s.respondFileError(w, err, "No insights for "+date, "Failed to read daily insights")
		return
	}
	if batch.Insights == nil {
		batch.Insights = []core.Insight{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"date":     batch.Date,
		"insights": batch.Insights,
	})
}

// handleListWeekly handles GET /api/insights/weekly
func (s *Server) handleListWeekly(w http.ResponseWriter, r *http.Request) {
	digests, err := s.reports.WeeklyDigests()
	if err != nil {
		s.log.Error("Failed to list weekly digests", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to list weekly digests", err)
		return
	}
	if digests == nil {
		digests = []store.Report{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"digests": digests,
	})
}

// handleGetWeekly handles GET /api/insights/weekly/{filename}
func (s *Server) handleGetWeekly(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.ReadWeekly(chi.URLParam(r, "filename"))
	if err != nil {
		s.respondFileError(w, err, "Weekly digest not found", "Failed to read weekly digest")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"filename": report.Filename,
		"content":  report.Content,
	})
}
