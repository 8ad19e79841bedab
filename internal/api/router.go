package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/portaoweb/portao-core/internal/panel"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Command relay
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/comando/{command}", s.handleCommand)
	})

	// Device status
	r.Post("/statusPortao", s.handleReportStatus)
	r.Get("/statusPortao", s.handleGetStatus)
	r.Get("/statusPortao/historico", s.handleStatusHistory)

	// Push channel
	r.Get(s.wsPath(), s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)
		r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			writeNotFound(w, "endpoint not found")
		})
	})

	// Web UI
	r.Handle("/*", panel.Handler(s.panelDir))

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
