package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-alexa/internal/metrics"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	// Account linking
	r.Route("/oauth", func(r chi.Router) {
		r.Get("/authorize", s.handleAuthorize)
		r.Post("/token", s.handleToken)
	})

	// Directives forwarded by the skill; authorization is per directive
	r.Post("/smarthome", s.handleSmartHome)

	// Camera media (token query parameter)
	r.Route("/camera/{endpointID}", func(r chi.Router) {
		r.Use(s.queryTokenMiddleware)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/stream", s.handleStream)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via token query parameter)
		r.With(s.queryTokenMiddleware).Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Get("/endpoints", s.handleListEndpoints)
			r.Get("/streams", s.handleListStreams)
		})
	})

	return r
}
