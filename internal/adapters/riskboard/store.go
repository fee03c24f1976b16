// Package riskboard maintains the live ranking of tracked subjects by their
// current intent risk.
package riskboard

import (
	"context"
	"time"

	"github.com/okian/kestrel/internal/domain/model"
)

// Entry is one subject's current assessment on the board.
type Entry struct {
	Rank           int              `json:"rank"`
	StreamID       string           `json:"stream_id"`
	SubjectID      string           `json:"subject_id"`
	Score          float64          `json:"score"`
	Level          model.AlertLevel `json:"level"`
	Zone           model.Zone       `json:"zone"`
	BehaviorRisk   float64          `json:"behavior_risk"`
	TrustFactor    float64          `json:"trust_factor"`
	SuspiciousFeed bool             `json:"suspicious_feed"`
	At             time.Time        `json:"at"`
}

// Store provides read/write access to the live ranking. Entries are keyed by
// (stream, subject); ranks are assigned on read, ties on score sharing a rank.
type Store interface {
	// Upsert replaces the subject's current assessment.
	Upsert(ctx context.Context, entry Entry) error

	// Get returns the best-ranked entry for a subject id across all streams.
	// Returns ErrNotFound when the subject is unknown.
	Get(ctx context.Context, subjectID string) (Entry, error)

	// TopN returns the n highest-risk entries in rank order.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Remove drops one subject's entry and reports whether it existed.
	Remove(ctx context.Context, streamID, subjectID string) bool

	// RemoveStream drops every entry belonging to a stream and returns how
	// many were removed.
	RemoveStream(ctx context.Context, streamID string) int

	// Count returns the number of entries on the board.
	Count(ctx context.Context) int
}
