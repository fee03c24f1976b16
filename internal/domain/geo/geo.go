// Package geo provides planar geometry for perimeter boundaries.
package geo

import (
	"fmt"
	"math"

	"github.com/okian/kestrel/internal/domain/model"
)

// Point is a planar coordinate in the camera plane.
type Point = model.Position

// Polygon is a closed perimeter boundary defined by ordered vertices. The
// protected area is the polygon interior: distance is zero inside or on the
// boundary and grows monotonically outward.
type Polygon struct {
	vertices []Point
}

// NewPolygon builds a boundary from at least three finite vertices.
func NewPolygon(vertices []Point) (*Polygon, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: need at least 3 vertices, got %d", ErrInvalidBoundary, len(vertices))
	}
	for i, v := range vertices {
		if !Finite(v) {
			return nil, fmt.Errorf("%w: vertex %d is not finite", ErrInvalidBoundary, i)
		}
	}
	vs := make([]Point, len(vertices))
	copy(vs, vertices)
	return &Polygon{vertices: vs}, nil
}

// Vertices returns a copy of the boundary vertices.
func (p *Polygon) Vertices() []Point {
	vs := make([]Point, len(p.vertices))
	copy(vs, p.vertices)
	return vs
}

// Contains reports whether pt lies strictly inside the polygon (even-odd rule).
// Points exactly on an edge are handled by Distance, which reports zero there
// regardless of the crossing parity.
func (p *Polygon) Contains(pt Point) bool {
	inside := false
	n := len(p.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := p.vertices[i], p.vertices[j]
		if (vi.Y > pt.Y) != (vj.Y > pt.Y) &&
			pt.X < (vj.X-vi.X)*(pt.Y-vi.Y)/(vj.Y-vi.Y)+vi.X {
			inside = !inside
		}
	}
	return inside
}

// ClosestPoint returns the nearest point on the boundary edges and the
// Euclidean distance to it.
func (p *Polygon) ClosestPoint(pt Point) (Point, float64) {
	best := p.vertices[0]
	bestDist := math.Inf(1)
	n := len(p.vertices)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		c := closestOnSegment(pt, p.vertices[j], p.vertices[i])
		if d := euclidean(pt, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// Distance returns the subject's distance to the protected area: zero inside
// or on the boundary, otherwise the minimum distance to the boundary edges.
func (p *Polygon) Distance(pt Point) float64 {
	if !Finite(pt) {
		return math.NaN()
	}
	_, d := p.ClosestPoint(pt)
	if p.Contains(pt) {
		return 0
	}
	return d
}

// ApproachDirection returns the unit vector from pt toward the boundary, or a
// zero vector when pt is inside or exactly on the boundary. Used to decompose
// velocities into radial and tangential components.
func (p *Polygon) ApproachDirection(pt Point) Point {
	c, d := p.ClosestPoint(pt)
	if d == 0 || p.Contains(pt) {
		return Point{}
	}
	return Point{X: (c.X - pt.X) / d, Y: (c.Y - pt.Y) / d}
}

// Finite reports whether both coordinates are finite numbers.
func Finite(pt Point) bool {
	return !math.IsNaN(pt.X) && !math.IsInf(pt.X, 0) &&
		!math.IsNaN(pt.Y) && !math.IsInf(pt.Y, 0)
}

// closestOnSegment projects p onto segment ab, clamped to the segment.
func closestOnSegment(p, a, b Point) Point {
	abx, aby := b.X-a.X, b.Y-a.Y
	ab2 := abx*abx + aby*aby
	if ab2 == 0 {
		return a
	}
	t := ((p.X-a.X)*abx + (p.Y-a.Y)*aby) / ab2
	t = math.Max(0, math.Min(1, t))
	return Point{X: a.X + t*abx, Y: a.Y + t*aby}
}

func euclidean(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
