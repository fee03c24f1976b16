// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"time"
)

// healthResponse is the GET /healthz body.
type healthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// HealthHandler handles health check requests.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HandleHealth handles GET /healthz requests. Liveness only: it answers as
// long as the HTTP server does; readiness of the pipeline shows in /v1/stats.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
