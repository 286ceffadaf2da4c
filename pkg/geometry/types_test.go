package geometry

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point2D
		want float64
	}{
		{"same point", Point2D{1, 1}, Point2D{1, 1}, 0},
		{"unit x", Point2D{0, 0}, Point2D{1, 0}, 1},
		{"3-4-5", Point2D{0, 0}, Point2D{3, 4}, 5},
		{"negative coords", Point2D{-3, -4}, Point2D{0, 0}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Distance(tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Distance(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	points := []Point2D{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	got := Centroid(points)
	if got.X != 1 || got.Y != 1 {
		t.Errorf("Centroid = %v, want (1,1)", got)
	}

	if c := Centroid(nil); c.X != 0 || c.Y != 0 {
		t.Errorf("Centroid(nil) = %v, want origin", c)
	}
}

func TestCircleContains(t *testing.T) {
	c := Circle{Center: Point2D{5, 5}, Radius: 2}

	if !c.Contains(Point2D{5, 5}) {
		t.Error("center should be inside")
	}
	if !c.Contains(Point2D{7, 5}) {
		t.Error("boundary point should be inside")
	}
	if c.Contains(Point2D{7.1, 5}) {
		t.Error("outside point reported inside")
	}
}

func TestRectIntEmpty(t *testing.T) {
	if (RectInt{X: 0, Y: 0, Width: 10, Height: 10}).Empty() {
		t.Error("non-degenerate rect reported empty")
	}
	if !(RectInt{Width: 0, Height: 5}).Empty() {
		t.Error("zero-width rect not reported empty")
	}
	if !(RectInt{Width: 5, Height: -1}).Empty() {
		t.Error("negative-height rect not reported empty")
	}
}
