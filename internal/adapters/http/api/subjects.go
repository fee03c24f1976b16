// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/kestrel/internal/adapters/riskboard"
)

// SubjectDependencies defines the interface for subject lookups.
type SubjectDependencies interface {
	Subject(ctx context.Context, subjectID string) (Entry, error)
}

// SubjectsHandler handles per-subject assessment lookups.
type SubjectsHandler struct {
	deps SubjectDependencies
}

// NewSubjectsHandler creates a new subjects handler.
func NewSubjectsHandler(deps SubjectDependencies) *SubjectsHandler {
	return &SubjectsHandler{deps: deps}
}

// HandleGetSubject handles GET /v1/subjects/{subject_id} requests.
func (h *SubjectsHandler) HandleGetSubject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /v1/subjects/
	subjectID := strings.TrimPrefix(r.URL.Path, "/v1/subjects/")
	if subjectID == "" || strings.Contains(subjectID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	entry, err := h.deps.Subject(r.Context(), subjectID)
	if err != nil {
		if errors.Is(err, riskboard.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
