// Package behavior derives movement-pattern risk from bounded position histories.
package behavior

import (
	"time"

	"github.com/okian/kestrel/internal/domain/model"
)

// Sample is one history entry: where the subject was, when, how far from the
// boundary, and the unit direction toward the boundary at that point.
type Sample struct {
	At       time.Time
	Pos      model.Position
	Dist     float64
	Approach model.Position
}

// State holds one subject's bounded history and smoothing memory. It is owned
// by the fusion engine and handed to the Tracker on each update; the Tracker
// itself keeps no subject tables.
type State struct {
	ring     []Sample
	head     int
	n        int
	smoothed float64
}

// NewState allocates history storage for one subject.
func NewState(capacity int) *State {
	if capacity < minHistoryCapacity {
		capacity = minHistoryCapacity
	}
	return &State{ring: make([]Sample, capacity)}
}

// push appends a sample, evicting the oldest when full.
func (s *State) push(sample Sample) {
	s.ring[s.head] = sample
	s.head = (s.head + 1) % len(s.ring)
	if s.n < len(s.ring) {
		s.n++
	}
}

// Len returns the number of stored samples.
func (s *State) Len() int { return s.n }

// Smoothed returns the current exponentially smoothed behavior risk.
func (s *State) Smoothed() float64 { return s.smoothed }

// at returns the i-th stored sample, 0 being the oldest.
func (s *State) at(i int) Sample {
	start := s.head - s.n
	if start < 0 {
		start += len(s.ring)
	}
	return s.ring[(start+i)%len(s.ring)]
}

// lastN returns up to n most recent samples in chronological order. The
// returned slice is freshly built each call; detectors only read it.
func (s *State) lastN(n int) []Sample {
	if n > s.n {
		n = s.n
	}
	out := make([]Sample, n)
	for i := 0; i < n; i++ {
		out[i] = s.at(s.n - n + i)
	}
	return out
}
