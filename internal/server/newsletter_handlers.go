package server

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"wisgen/internal/store"

	"github.com/go-chi/chi/v5"
)

// handleListNewsletters handles GET /api/newsletters
func (s *Server) handleListNewsletters(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List()
	if err != nil {
		s.log.Error("Failed to list newsletters", "error", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to get newsletters", err)
		return
	}
	if docs == nil {
		docs = []store.DocumentInfo{}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"message":     "Newsletters retrieved successfully",
		"newsletters": docs,
	})
}

// handleGetNewsletter handles GET /api/newsletters/{filename}
func (s *Server) handleGetNewsletter(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	content, err := s.documents.Read(filename)
	if err != nil {
		s.respondFileError(w, err, "Newsletter file not found", "Failed to get newsletter content")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"filename":    filename,
		"isProcessed": strings.HasPrefix(filename, "processed_"),
		"content":     content,
	})
}

// respondFileError maps store errors to 400, 404 or 500.
func (s *Server) respondFileError(w http.ResponseWriter, err error, notFound, failed string) {
	switch {
	case errors.Is(err, store.ErrInvalidName):
		s.respondError(w, http.StatusBadRequest, "Invalid file name", nil)
	case errors.Is(err, os.ErrNotExist):
		s.respondError(w, http.StatusNotFound, notFound, nil)
	default:
		s.log.Error(failed, "error", err)
		s.respondError(w, http.StatusInternalServerError, failed, err)
	}
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
