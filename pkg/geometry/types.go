// Package geometry provides the basic geometric types shared by the
// analysis pipeline.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
// X is the column direction of the source image, Y the row direction.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Centroid computes the centroid (average position) of a set of points.
func Centroid(points []Point2D) Point2D {
	if len(points) == 0 {
		return Point2D{}
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point2D{X: sumX / n, Y: sumY / n}
}

// Circle represents a circle in image coordinates.
type Circle struct {
	Center Point2D `json:"center"`
	Radius float64 `json:"radius"`
}

// Contains returns true if the point lies inside or on the circle.
func (c Circle) Contains(p Point2D) bool {
	return c.Center.Distance(p) <= c.Radius
}

// RectInt represents a rectangle with integer pixel coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty returns true if the rectangle has no area.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
