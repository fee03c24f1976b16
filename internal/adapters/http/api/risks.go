// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// RiskDependencies defines the interface for ranked risk queries.
type RiskDependencies interface {
	TopRisks(ctx context.Context, n int) ([]Entry, error)
}

// RisksHandler handles ranked risk queries.
type RisksHandler struct {
	deps     RiskDependencies
	maxLimit int
}

// NewRisksHandler creates a new risks handler.
func NewRisksHandler(deps RiskDependencies, maxLimit int) *RisksHandler {
	return &RisksHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetRisks handles GET /v1/risks?limit=N requests.
func (h *RisksHandler) HandleGetRisks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limitStr := r.URL.Query().Get("limit")
	n, err := strconv.Atoi(limitStr)
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
		return
	}
	if n > h.maxLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit above %d", ErrBadRequest, h.maxLimit))
		return
	}
	entries, err := h.deps.TopRisks(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
