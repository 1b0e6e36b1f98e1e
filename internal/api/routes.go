package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Performance routes
	perf := api.PathPrefix("/performance").Subrouter()
	perf.HandleFunc("/evaluate", handler.Evaluate).Methods("POST")
	perf.HandleFunc("/evaluate/all", handler.EvaluateAll).Methods("POST")
	perf.HandleFunc("/overview", handler.GetOverview).Methods("GET")
	perf.HandleFunc("/scoreboard", handler.GetScoreboard).Methods("GET")
	perf.HandleFunc("/outcomes", handler.ListOutcomes).Methods("GET")

	// Price routes
	api.HandleFunc("/prices/{symbol}", handler.GetPriceHistory).Methods("GET")
	api.HandleFunc("/prices/{symbol}", handler.IngestPrices).Methods("POST")
	api.HandleFunc("/prices/{symbol}/latest", handler.GetLatestPrice).Methods("GET")

	return r
}
