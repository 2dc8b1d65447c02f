package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires every endpoint. metricsHandler serves /metrics and may be
// nil.
func NewRouter(h *Handlers, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()

	// CORS middleware
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", h.Health).Methods("GET")

	// Logs endpoints
	api.HandleFunc("/logs/stream", h.StreamLogsSSE).Methods("GET")
	api.HandleFunc("/logs", h.GetLogs).Methods("GET")

	// Alerts endpoints
	api.HandleFunc("/alerts/stream", h.StreamAlertsSSE).Methods("GET")
	api.HandleFunc("/alerts", h.GetAlerts).Methods("GET")
	api.HandleFunc("/alerts/{id}", h.GetAlert).Methods("GET")
	api.HandleFunc("/alerts/{id}/acknowledge", h.AcknowledgeAlert).Methods("POST", "OPTIONS")
	api.HandleFunc("/context/{id}", h.GetContext).Methods("GET")

	// Rules endpoints
	api.HandleFunc("/rules", h.GetRules).Methods("GET")
	api.HandleFunc("/rules/{id}", h.GetRule).Methods("GET")

	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/export", h.Export).Methods("GET")

	// WebSocket streams
	v1 := api.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/stream/logs", h.StreamLogsWS).Methods("GET")
	v1.HandleFunc("/stream/alerts", h.StreamAlertsWS).Methods("GET")

	if metricsHandler != nil {
		router.Handle("/metrics", metricsHandler).Methods("GET")
	}

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if origin != "" {
			allowOrigin = origin
		}

		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
