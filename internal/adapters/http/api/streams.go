// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/kestrel/internal/domain/fusion"
)

// StreamDependencies defines the interface for stream inspection and reset.
type StreamDependencies interface {
	Streams(ctx context.Context) []StreamStatus
	ResetStream(ctx context.Context, streamID string) (int, error)
}

// StreamsHandler handles stream summaries and per-stream resets.
type StreamsHandler struct {
	deps StreamDependencies
}

// NewStreamsHandler creates a new streams handler.
func NewStreamsHandler(deps StreamDependencies) *StreamsHandler {
	return &StreamsHandler{deps: deps}
}

// HandleListStreams handles GET /v1/streams requests.
func (h *StreamsHandler) HandleListStreams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	streams := h.deps.Streams(r.Context())
	if streams == nil {
		streams = []StreamStatus{}
	}
	writeJSON(w, http.StatusOK, streams)
}

// HandleStreamReset handles POST /v1/streams/{stream_id}/reset requests.
func (h *StreamsHandler) HandleStreamReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	// Extract path parameters after /v1/streams/
	rest := strings.TrimPrefix(r.URL.Path, "/v1/streams/")
	streamID, op, ok := strings.Cut(rest, "/")
	if !ok || streamID == "" || op != "reset" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	dropped, err := h.deps.ResetStream(r.Context(), streamID)
	if err != nil {
		if errors.Is(err, fusion.ErrUnknownStream) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, resetResponse{Status: "reset", SubjectsDropped: dropped})
}
