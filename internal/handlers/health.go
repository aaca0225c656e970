package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the health check response
// swagger:model HealthResponse
type HealthResponse struct {
	// Service status
	Status string `json:"status"`
	// Store connection state, "connected" or "disconnected"
	DBState string `json:"dbState"`
	// Server time
	Timestamp time.Time `json:"timestamp"`
}

// NewHealthHandler returns the health check handler. It reads the cached
// liveness state and is deliberately not gated, so it answers during
// outages too.
// @Summary Health check
// @Description Reports service and store-connection status.
// @Tags health
// @Produce json
// @Success 200 {object} handlers.HealthResponse
// @Router /health [get]
func NewHealthHandler(dbState func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:    "ok",
			DBState:   dbState(),
			Timestamp: time.Now(),
		})
	}
}
