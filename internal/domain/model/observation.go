// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"time"
)

// Position is a 2-D body-center coordinate in the camera plane. Units match
// whatever the configured boundary polygon uses (pixels or meters).
type Position struct {
	X float64
	Y float64
}

// Observation is a single subject sighting inside one frame cycle.
type Observation struct {
	SubjectID string    // stable per-subject identifier from upstream tracking
	Position  Position  // body-center coordinates
	At        time.Time // capture timestamp
}

// Frame is a raw video frame buffer: tightly packed, row-major, Channels
// interleaved bytes per pixel.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pixels   []byte
}

// Validate reports whether the frame buffer is self-consistent.
func (f *Frame) Validate() error {
	switch {
	case f.Width <= 0 || f.Height <= 0:
		return fmt.Errorf("%w: dimensions %dx%d", ErrMalformedFrame, f.Width, f.Height)
	case f.Channels != 1 && f.Channels != 3 && f.Channels != 4:
		return fmt.Errorf("%w: %d channels", ErrMalformedFrame, f.Channels)
	case len(f.Pixels) != f.Width*f.Height*f.Channels:
		return fmt.Errorf("%w: %d bytes for %dx%dx%d",
			ErrMalformedFrame, len(f.Pixels), f.Width, f.Height, f.Channels)
	}
	return nil
}

// Batch is one ingested frame cycle for a single camera stream: the frame
// buffer (nil when the perception side skipped it) plus zero or more subject
// observations captured in that frame.
type Batch struct {
	StreamID     string
	BatchID      string // unique id for idempotency
	FrameSeq     uint64 // monotonically increasing per stream
	At           time.Time
	Frame        *Frame
	Observations []Observation
}

// Validate checks the batch envelope. Frame payload consistency is checked
// separately so that a malformed frame degrades trust handling instead of
// rejecting the whole cycle.
func (b *Batch) Validate() error {
	switch {
	case b.StreamID == "":
		return fmt.Errorf("%w: missing stream id", ErrMalformedBatch)
	case b.BatchID == "":
		return fmt.Errorf("%w: missing batch id", ErrMalformedBatch)
	}
	for i := range b.Observations {
		if b.Observations[i].SubjectID == "" {
			return fmt.Errorf("%w: observation %d missing subject id", ErrMalformedBatch, i)
		}
	}
	return nil
}
