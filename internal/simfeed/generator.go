package simfeed

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Synthetic sensor geometry and pacing. Batch timestamps advance by
// frameInterval regardless of the send rate, so dwell times and speeds are
// driven by the scripted clock, not by how fast the batches go out.
const (
	frameWidth    = 64
	frameHeight   = 64
	frameInterval = 100 * time.Millisecond
)

// position is one scripted ground-track sample.
type position struct {
	x float64
	y float64
}

// pathFunc returns the subject position for a batch sequence number.
type pathFunc func(seq int) position

// frameFunc returns the sensor frame for a batch sequence number, or nil for
// streams that carry no pixel data.
type frameFunc func(rng *rand.Rand, seq int) *Frame

// buildBatches renders a scenario into ready-to-post ingestion payloads.
func buildBatches(scn *Scenario, start time.Time) []ObservationBatch {
	rng := rand.New(rand.NewSource(scn.Seed))
	batches := make([]ObservationBatch, 0, scn.Batches)

	for seq := 0; seq < scn.Batches; seq++ {
		at := start.Add(time.Duration(seq) * frameInterval)
		pos := scn.Path(seq)

		batch := ObservationBatch{
			StreamID: scn.StreamID,
			BatchID:  uuid.New().String(),
			FrameSeq: uint64(seq + 1),
			TS:       at.UTC().Format(time.RFC3339Nano),
			Observations: []Observation{{
				SubjectID: scn.SubjectID,
				X:         pos.x,
				Y:         pos.y,
			}},
		}
		if scn.Frames != nil {
			batch.Frame = scn.Frames(rng, seq)
		}
		batches = append(batches, batch)
	}
	return batches
}

// liveFrame simulates a healthy sensor: fresh noise on every frame with an
// amplitude that cycles, so the inter-frame diff window keeps real variance.
func liveFrame(rng *rand.Rand, seq int) *Frame {
	spread := 16 + 12*(seq%3)
	pixels := make([]byte, frameWidth*frameHeight)
	for i := range pixels {
		pixels[i] = byte(128 - spread/2 + rng.Intn(spread))
	}
	return &Frame{Width: frameWidth, Height: frameHeight, Channels: 1, Pixels: pixels}
}

// texturedFrame renders a deterministic diagonal texture. Equal seeds produce
// byte-identical frames, which reads as a frozen feed downstream.
func texturedFrame(seed int) *Frame {
	pixels := make([]byte, frameWidth*frameHeight)
	for i := range pixels {
		pixels[i] = byte(80 + (i*7+seed*13)%97)
	}
	return &Frame{Width: frameWidth, Height: frameHeight, Channels: 1, Pixels: pixels}
}

// blackFrame is the all-dark buffer a covered or failed sensor produces.
func blackFrame() *Frame {
	return &Frame{
		Width:    frameWidth,
		Height:   frameHeight,
		Channels: 1,
		Pixels:   make([]byte, frameWidth*frameHeight),
	}
}
