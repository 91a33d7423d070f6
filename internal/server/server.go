package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"wisgen/internal/config"
	"wisgen/internal/logger"
	"wisgen/internal/pipeline"
	"wisgen/internal/store"
	"wisgen/internal/trends"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Pipeline runs the stages the API can trigger
type Pipeline interface {
	RunDaily(ctx context.Context, ids []string) (*pipeline.DailyResult, error)
	RunTrends(ctx context.Context) (*trends.Report, error)
	RunProcess(ctx context.Context) (*pipeline.ProcessResult, error)
}

// RunLister lists recorded pipeline runs
type RunLister interface {
	Recent(ctx context.Context, limit int) ([]store.Run, error)
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     config.Server
	log        *slog.Logger

	documents *store.DocumentStore
	batches   *store.BatchStore
	reports   *store.ReportStore
	pipeline  Pipeline  // Optional; triggers answer 503 without it
	runs      RunLister // Optional
}

// New creates a new HTTP server over the data layout
func New(layout store.Layout, p Pipeline, runs RunLister, cfg config.Server, log *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		config:    cfg,
		log:       logger.Or(log),
		documents: store.NewDocumentStore(layout),
		batches:   store.NewBatchStore(layout),
		reports:   store.NewReportStore(layout),
		pipeline:  p,
		runs:      runs,
	}

	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	if s.config.CORS.Enabled {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300, // Maximum value not ignored by any major browsers
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/newsletters", func(r chi.Router) {
			r.Get("/", s.handleListNewsletters)
			r.Post("/pull", s.handlePull)
			r.Post("/process", s.handleProcess)
			r.Get("/{filename}", s.handleGetNewsletter)
		})

		r.Route("/insights", func(r chi.Router) {
			r.Get("/", s.handleLatestInsights)
			r.Post("/analyze", s.handleAnalyze)
			r.Get("/daily", s.handleListDaily)
			r.Get("/daily/{date}", s.handleGetDaily)
			r.Get("/weekly", s.handleListWeekly)
			r.Get("/weekly/{filename}", s.handleGetWeekly)
		})

		r.Get("/runs", s.handleListRuns)
	})
}

// requestLogger logs each request through the structured logger
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
