// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/kestrel/internal/domain/dedupe"
	"github.com/okian/kestrel/internal/domain/model"
)

// ObservationDependencies defines the interface for batch ingestion.
type ObservationDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, b *model.Batch) bool
}

// ObservationsHandler handles observation batch ingestion.
type ObservationsHandler struct {
	deps ObservationDependencies
}

// NewObservationsHandler creates a new observations handler.
func NewObservationsHandler(deps ObservationDependencies) *ObservationsHandler {
	return &ObservationsHandler{deps: deps}
}

// HandlePostObservations handles POST /v1/observations requests.
func (h *ObservationsHandler) HandlePostObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req observationBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	key := dedupe.Key(req.StreamID, req.BatchID)
	if h.deps.SeenAndRecord(r.Context(), key) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	// Try to enqueue for async processing
	if ok := h.deps.Enqueue(r.Context(), req.toBatch()); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), key)
		writeError(w, http.StatusTooManyRequests, "backpressure", ErrBackpressure)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
