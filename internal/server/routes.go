package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Query (retrieval pipeline)
	mux.HandleFunc("/api/query", s.app.QueryHandler.QueryHandler)        // POST - run the pipeline
	mux.HandleFunc("/api/query/trace/", s.app.QueryHandler.TraceHandler) // GET /{session_id} - last retrieval trace

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler) // liveness
	mux.HandleFunc("/api/ready", s.app.StatusHandler.ReadyHandler) // readiness with dependency detail

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
