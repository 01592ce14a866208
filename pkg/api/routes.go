package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes registers the v1 API and the metrics endpoint
func SetupRoutes(router *mux.Router, handlers *Handlers, metrics http.Handler) {
	// API version prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Job management endpoints
	jobs := api.PathPrefix("/jobs").Subrouter()
	jobs.HandleFunc("", handlers.SubmitJob).Methods("POST")
	jobs.HandleFunc("", handlers.ListJobs).Methods("GET")
	jobs.HandleFunc("/{jobId}", handlers.GetJob).Methods("GET")
	jobs.HandleFunc("/{jobId}/result", handlers.GetJobResult).Methods("GET")
	jobs.HandleFunc("/{jobId}/cancel", handlers.CancelJob).Methods("POST")

	// Health check endpoint
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// Models, methods and solvers
	api.HandleFunc("/capabilities", handlers.ListCapabilities).Methods("GET")

	if metrics != nil {
		router.Handle("/metrics", metrics).Methods("GET")
	}

	api.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Let CORS middleware handle it
	}).Methods("OPTIONS")
}

// NewRouter builds a router with routes and the middleware stack
func NewRouter(handlers *Handlers, metrics http.Handler) *mux.Router {
	router := mux.NewRouter()
	SetupRoutes(router, handlers, metrics)

	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)
	router.Use(RecoveryMiddleware)

	return router
}
