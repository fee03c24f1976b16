// Package trust scores camera feed integrity through layered frame checks.
package trust

import (
	"hash/fnv"
	"math"

	"github.com/okian/kestrel/internal/domain/model"
)

// fingerprintSide is the square downsample size used for frame fingerprints.
const fingerprintSide = 32

// luminancePlane extracts the 8-bit luminance of every pixel. Multi-channel
// frames are treated as interleaved B,G,R(,A) and converted with BT.601
// integer weights; single-channel frames pass through.
func luminancePlane(f *model.Frame, dst []byte) []byte {
	n := f.Width * f.Height
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	if f.Channels == 1 {
		copy(dst, f.Pixels)
		return dst
	}
	c := f.Channels
	for i := 0; i < n; i++ {
		p := f.Pixels[i*c:]
		b, g, r := int(p[0]), int(p[1]), int(p[2])
		dst[i] = byte((299*r + 587*g + 114*b) / 1000)
	}
	return dst
}

// fingerprint reduces the luminance plane to a 32x32 grid and hashes it with
// FNV-1a. Nearest-neighbor sampling keeps identical frames identical and is
// cheap enough to run every frame.
func fingerprint(luma []byte, w, h int) uint64 {
	hasher := fnv.New64a()
	var grid [fingerprintSide * fingerprintSide]byte
	for gy := 0; gy < fingerprintSide; gy++ {
		sy := gy * h / fingerprintSide
		for gx := 0; gx < fingerprintSide; gx++ {
			sx := gx * w / fingerprintSide
			grid[gy*fingerprintSide+gx] = luma[sy*w+sx]
		}
	}
	_, _ = hasher.Write(grid[:])
	return hasher.Sum64()
}

// shannonEntropy computes the base-2 entropy of the 256-bin luminance
// histogram, in bits. A blank frame scores 0, uniform noise close to 8.
func shannonEntropy(luma []byte) float64 {
	if len(luma) == 0 {
		return 0
	}
	var hist [256]int
	for _, v := range luma {
		hist[v]++
	}
	total := float64(len(luma))
	entropy := 0.0
	for _, count := range hist {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// meanAbsDiff is the average absolute luminance delta between two planes of
// equal length.
func meanAbsDiff(a, b []byte) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	sum := 0
	for i := range a {
		d := int(a[i]) - int(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return float64(sum) / float64(len(a))
}

// meanVariance returns the mean and population variance of a sample window.
func meanVariance(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	return mean, variance / float64(len(values))
}
