// Package world generates the static side of a simulation: where people
// stand, who is connected to whom, which methods each connection offers and
// the named areas of the map.
package world

import (
	"fmt"
	"math"
)

// Point is a position on the map in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	return math.Sqrt(DistSq(a, b))
}

// DistSq returns the squared distance between two points.
func DistSq(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

// Lerp returns the point a fraction t of the way from a to b.
func Lerp(a, b Point, t float64) Point {
	return Point{X: a.X + t*(b.X-a.X), Y: a.Y + t*(b.Y-a.Y)}
}

// SegmentDistSq returns the squared distance from p to the segment a-b.
func SegmentDistSq(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return DistSq(p, a)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / lenSq
	switch {
	case t < 0:
		return DistSq(p, a)
	case t > 1:
		return DistSq(p, b)
	}
	return DistSq(p, Point{X: a.X + t*dx, Y: a.Y + t*dy})
}

func (p Point) String() string {
	return fmt.Sprintf("(%.0f, %.0f)", p.X, p.Y)
}

// PairKey identifies an unordered pair of people.
type PairKey struct {
	A, B int
}

// Pair returns the key for people a and b in either order.
func Pair(a, b int) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{A: a, B: b}
}
