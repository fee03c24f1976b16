// Package riskboard maintains the live ranking of tracked subjects by their
// current intent risk.
package riskboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/kestrel/pkg/metrics"
)

// MemoryStore is the in-memory Store. Writes land in a map and mark the
// sorted view dirty; the first read after a write rebuilds it once. The board
// holds only currently tracked subjects, so full rebuilds stay cheap.
type MemoryStore struct {
	mu      sync.RWMutex
	byKey   map[string]Entry
	ordered []Entry
	dirty   bool
}

// NewMemoryStore constructs an empty board.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string]Entry)}
}

func boardKey(streamID, subjectID string) string {
	return streamID + "/" + subjectID
}

// Upsert replaces the subject's current assessment.
func (s *MemoryStore) Upsert(_ context.Context, entry Entry) error {
	start := time.Now()
	defer func() {
		metrics.RecordBoardUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	entry.Rank = 0 // ranks are assigned on read
	s.byKey[boardKey(entry.StreamID, entry.SubjectID)] = entry
	s.dirty = true
	count := len(s.byKey)
	s.mu.Unlock()

	metrics.UpdateBoardSubjects(count)
	return nil
}

// Get returns the best-ranked entry for a subject id across all streams.
func (s *MemoryStore) Get(_ context.Context, subjectID string) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBoardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	for _, e := range s.snapshot() {
		if e.SubjectID == subjectID {
			return e, nil
		}
	}
	metrics.RecordErrorByComponent("riskboard", "not_found")
	return Entry{}, ErrNotFound
}

// TopN returns the n highest-risk entries in rank order.
func (s *MemoryStore) TopN(_ context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordBoardQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("riskboard", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	snap := s.snapshot()
	if n > len(snap) {
		n = len(snap)
	}
	out := make([]Entry, n)
	copy(out, snap[:n])
	return out, nil
}

// Remove drops one subject's entry and reports whether it existed.
func (s *MemoryStore) Remove(_ context.Context, streamID, subjectID string) bool {
	s.mu.Lock()
	key := boardKey(streamID, subjectID)
	_, ok := s.byKey[key]
	if ok {
		delete(s.byKey, key)
		s.dirty = true
	}
	count := len(s.byKey)
	s.mu.Unlock()

	if ok {
		metrics.UpdateBoardSubjects(count)
	}
	return ok
}

// RemoveStream drops every entry belonging to a stream.
func (s *MemoryStore) RemoveStream(_ context.Context, streamID string) int {
	s.mu.Lock()
	removed := 0
	for key, e := range s.byKey {
		if e.StreamID == streamID {
			delete(s.byKey, key)
			removed++
		}
	}
	if removed > 0 {
		s.dirty = true
	}
	count := len(s.byKey)
	s.mu.Unlock()

	if removed > 0 {
		metrics.UpdateBoardSubjects(count)
	}
	return removed
}

// Count returns the number of entries on the board.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// snapshot returns the current sorted view, rebuilding it when writes have
// landed since the last read. The returned slice is replaced wholesale on
// rebuild; readers must not mutate it.
func (s *MemoryStore) snapshot() []Entry {
	s.mu.RLock()
	if !s.dirty {
		snap := s.ordered
		s.mu.RUnlock()
		return snap
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dirty {
		s.rebuild()
	}
	return s.ordered
}

// rebuild sorts the board and assigns ranks. Entries tied on score share a
// rank and the next distinct score takes the following one. Callers hold the
// write lock.
func (s *MemoryStore) rebuild() {
	ordered := make([]Entry, 0, len(s.byKey))
	for _, e := range s.byKey {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.At.Equal(b.At) {
			return a.At.After(b.At)
		}
		if a.SubjectID != b.SubjectID {
			return a.SubjectID < b.SubjectID
		}
		return a.StreamID < b.StreamID
	})

	rank := 0
	for i := range ordered {
		if i == 0 || ordered[i].Score != ordered[i-1].Score {
			rank++
		}
		ordered[i].Rank = rank
	}

	s.ordered = ordered
	s.dirty = false
}
