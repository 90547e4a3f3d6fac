package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/antozhu/manhunt/internal/errs"
	"github.com/antozhu/manhunt/internal/model"
)

// Boundary is a closed simple polygon in WGS-84. Points on an edge or vertex
// count as inside.
type Boundary struct {
	ring orb.Ring
}

// NewBoundary validates the vertex list and returns a closed boundary.
// At least 3 distinct vertices are required; a trailing duplicate of the
// first vertex is accepted and normalized away.
func NewBoundary(coords []model.Coordinate) (*Boundary, error) {
	if len(coords) > 1 && coords[0] == coords[len(coords)-1] {
		coords = coords[:len(coords)-1]
	}
	if len(coords) < 3 {
		return nil, errs.Validation(errs.CodeInvalidGeometry,
			"boundary needs at least 3 vertices, got %d", len(coords))
	}
	ring := make(orb.Ring, 0, len(coords)+1)
	for _, c := range coords {
		if err := ValidateCoordinate(c); err != nil {
			return nil, err
		}
		ring = append(ring, orb.Point{c.Longitude, c.Latitude})
	}
	ring = append(ring, ring[0]) // close the ring
	return &Boundary{ring: ring}, nil
}

// Contains reports whether p lies inside or on the boundary.
func (b *Boundary) Contains(p model.Coordinate) bool {
	pt := orb.Point{p.Longitude, p.Latitude}
	for i := 0; i < len(b.ring)-1; i++ {
		if onSegment(pt, b.ring[i], b.ring[i+1]) {
			return true
		}
	}
	return planar.RingContains(b.ring, pt)
}

// Coordinates returns the boundary vertices without the closing duplicate.
func (b *Boundary) Coordinates() []model.Coordinate {
	out := make([]model.Coordinate, 0, len(b.ring)-1)
	for _, pt := range b.ring[:len(b.ring)-1] {
		out = append(out, model.Coordinate{Latitude: pt[1], Longitude: pt[0]})
	}
	return out
}

// onSegment reports whether p lies on the segment a-b (planar test on
// lng/lat degrees; adequate at game scale).
func onSegment(p, a, b orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if cross > segmentEpsilon || cross < -segmentEpsilon {
		return false
	}
	dot := (p[0]-a[0])*(b[0]-a[0]) + (p[1]-a[1])*(b[1]-a[1])
	if dot < 0 {
		return false
	}
	lenSq := (b[0]-a[0])*(b[0]-a[0]) + (b[1]-a[1])*(b[1]-a[1])
	return dot <= lenSq
}

const segmentEpsilon = 1e-12
