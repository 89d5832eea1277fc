// Package router provides HTTP routing configuration for the coordinator API.
// It sets up routes and applies middleware like CORS.
package router

import (
	"net/http"
	"time"

	"github.com/afikmenashe/campus-alert/internal/handlers"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux      *http.ServeMux
	handlers *handlers.Handlers
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *handlers.Handlers) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes for the API. Handlers check the
// method themselves.
func (r *Router) setupRoutes() {
	// Emergency lifecycle
	r.mux.HandleFunc("/api/emergency/trigger", r.handlers.TriggerEmergency)
	r.mux.HandleFunc("/api/emergency/update", r.handlers.SendStatusUpdate)
	r.mux.HandleFunc("/api/emergency/resolve", r.handlers.ResolveEmergency)
	r.mux.HandleFunc("/api/emergency/status", r.handlers.GetEmergencyStatus)
	r.mux.HandleFunc("/api/emergency/history", r.handlers.GetEmergencyHistory)

	r.mux.HandleFunc("/api/notifications/recent", r.handlers.ListRecentNotifications)

	// Roster lookups
	r.mux.HandleFunc("/api/branches", r.handlers.ListBranches)
	r.mux.HandleFunc("/api/sections", r.handlers.ListSections)
	r.mux.HandleFunc("/api/students", r.handlers.ListStudents)

	r.mux.HandleFunc("/api/metrics", r.handlers.GetServiceMetrics)

	// Health check endpoint
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Handler returns the HTTP handler with CORS and metrics middleware applied.
func (r *Router) Handler() http.Handler {
	handler := corsMiddleware(r.mux)
	handler = metricsMiddleware(r.handlers.Metrics())(handler)
	return handler
}

// NewServer creates a new HTTP server with the router configured.
// The write timeout is long because a trigger answers only after dispatch completes.
func NewServer(port string, h *handlers.Handlers) *http.Server {
	router := NewRouter(h)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}
