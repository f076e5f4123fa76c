package server

import "net/http"

// registerRoutes sets up the preview endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /preview/{id}", s.handlePreview)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return s.corsMiddleware(mux)
}
