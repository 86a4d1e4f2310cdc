package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthTimeout bounds the dependency checks behind GET /health.
const healthTimeout = 5 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleCreateDevice)
			r.Get("/physical/{physicalID}", s.handleGetDeviceByPhysicalID)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Put("/", s.handleUpdateDevice)
				r.Delete("/", s.handleDeleteDevice)
				r.Get("/state", s.handleGetState)
				r.Put("/state", s.handlePutState)
				r.Delete("/state", s.handleDeleteState)
				r.Get("/actions", s.handlePullDeviceActions)
			})
		})

		r.Route("/device_states", func(r chi.Router) {
			r.Post("/", s.handleCreateState)
			r.Get("/{id}", s.handleGetState)
			r.Put("/{id}", s.handlePutState)
			r.Delete("/{id}", s.handleDeleteState)
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/", s.handleRecordEvent)
			r.Get("/{physicalID}", s.handleListEvents)
			if s.ingestHTTP {
				r.Post("/{physicalID}/{name}", s.handleIngestEvent)
			}
		})

		r.Route("/actions", func(r chi.Router) {
			r.Get("/{physicalID}", s.handlePullActions)
			if s.ingestHTTP {
				r.Post("/{physicalID}/{name}", s.handleSubmitAction)
			}
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, ErrCodeUnhealthy, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
