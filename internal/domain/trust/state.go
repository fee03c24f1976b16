// Package trust scores camera feed integrity through layered frame checks.
package trust

// State holds one camera stream's rolling trust memory. It is owned by the
// fusion engine and handed to the Scorer on each frame; the Scorer itself
// keeps no stream tables. Dropping the State and allocating a fresh one is
// the reset path, so resets stay local and explicit.
type State struct {
	prints    []uint64 // ring of recent frame fingerprints
	printHead int
	printN    int
	freeze    int // consecutive-repeat pressure, decays on fresh frames

	cur       []byte // scratch luminance plane for the current frame
	prev      []byte // luminance plane of the previous frame
	prevValid bool

	motions    []float64 // ring of recent mean-absdiff samples
	motionHead int
	motionN    int

	smoothed   float64
	liveness   float64
	entropy    float64
	motion     float64
	suspicious bool
	frames     uint64
}

// NewState allocates rolling storage sized for this scorer's windows. A fresh
// state reports full trust until frames prove otherwise.
func (s *Scorer) NewState() *State {
	return &State{
		prints:   make([]uint64, s.repeatWindow),
		motions:  make([]float64, s.motionWindow),
		smoothed: maxTrust,
		liveness: maxTrust,
		entropy:  maxTrust,
		motion:   maxTrust,
	}
}

// TrustScore returns the current smoothed trust score.
func (st *State) TrustScore() float64 { return st.smoothed }

// Suspicious reports whether the stream is currently below the trust threshold.
func (st *State) Suspicious() bool { return st.suspicious }

// Liveness returns the latest liveness layer sub-score.
func (st *State) Liveness() float64 { return st.liveness }

// Entropy returns the latest entropy layer sub-score.
func (st *State) Entropy() float64 { return st.entropy }

// Motion returns the latest motion realism layer sub-score.
func (st *State) Motion() float64 { return st.motion }

// Frames returns the number of frames folded into this state.
func (st *State) Frames() uint64 { return st.frames }

// seenPrint reports whether the fingerprint appears in the recent ring.
func (st *State) seenPrint(print uint64) bool {
	for i := 0; i < st.printN; i++ {
		if st.prints[i] == print {
			return true
		}
	}
	return false
}

// pushPrint appends a fingerprint, evicting the oldest when full.
func (st *State) pushPrint(print uint64) {
	st.prints[st.printHead] = print
	st.printHead = (st.printHead + 1) % len(st.prints)
	if st.printN < len(st.prints) {
		st.printN++
	}
}

// pushMotion appends a mean-absdiff sample, evicting the oldest when full.
func (st *State) pushMotion(diff float64) {
	st.motions[st.motionHead] = diff
	st.motionHead = (st.motionHead + 1) % len(st.motions)
	if st.motionN < len(st.motions) {
		st.motionN++
	}
}

// motionWindowFull reports whether enough samples exist to judge motion.
func (st *State) motionWindowFull() bool { return st.motionN == len(st.motions) }

// motionSamples returns the stored samples; order does not matter for the
// mean/variance statistics read from them.
func (st *State) motionSamples() []float64 { return st.motions[:st.motionN] }
