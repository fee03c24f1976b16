// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
)

// ResetDependencies defines the interface for the global reset.
type ResetDependencies interface {
	ResetAll(ctx context.Context) int
}

// ResetHandler handles the global analysis reset.
type ResetHandler struct {
	deps ResetDependencies
}

// NewResetHandler creates a new reset handler.
func NewResetHandler(deps ResetDependencies) *ResetHandler {
	return &ResetHandler{deps: deps}
}

// HandleResetAll handles POST /v1/reset requests.
func (h *ResetHandler) HandleResetAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	dropped := h.deps.ResetAll(r.Context())
	writeJSON(w, http.StatusOK, resetResponse{Status: "reset", SubjectsDropped: dropped})
}
