package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/jhsu22/droplet-analyzer/internal/contour"
)

func circlePoints(cy, cx int, r float64, n int) contour.PointSet {
	points := make(contour.PointSet, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		points[i] = contour.Point{
			Row: cy + int(math.Round(r*math.Sin(theta))),
			Col: cx + int(math.Round(r*math.Cos(theta))),
		}
	}
	return points
}

func TestFitCircleFullRing(t *testing.T) {
	points := circlePoints(250, 250, 85, 360)

	c, err := FitCircle(points, 1e-5)
	if err != nil {
		t.Fatalf("FitCircle: %v", err)
	}

	if math.Abs(c.Center.X-250) > 1 || math.Abs(c.Center.Y-250) > 1 {
		t.Errorf("center = %+v, want (250,250) +/- 1", c.Center)
	}
	if math.Abs(c.Radius-85) > 1 {
		t.Errorf("radius = %.3f, want 85 +/- 1", c.Radius)
	}
	// Pixel rounding is the only noise source, so the residual stays small.
	if c.Residual < 0 || c.Residual > 1 {
		t.Errorf("residual = %.4f, want [0, 1]", c.Residual)
	}
	if c.Iterations < 1 || c.Iterations > maxIterations {
		t.Errorf("iterations = %d outside [1, %d]", c.Iterations, maxIterations)
	}
}

func TestFitCirclePartialArc(t *testing.T) {
	// Upper 120 degree arc only. The geometric refinement must still land
	// near the true circle.
	var points contour.PointSet
	for i := 0; i < 120; i++ {
		theta := (30 + float64(i)) * math.Pi / 180
		points = append(points, contour.Point{
			Row: 100 - int(math.Round(60*math.Sin(theta))),
			Col: 100 + int(math.Round(60*math.Cos(theta))),
		})
	}

	c, err := FitCircle(points, 1e-5)
	if err != nil {
		t.Fatalf("FitCircle: %v", err)
	}
	if math.Abs(c.Center.X-100) > 2 || math.Abs(c.Center.Y-100) > 2 {
		t.Errorf("center = %+v, want (100,100) +/- 2", c.Center)
	}
	if math.Abs(c.Radius-60) > 2 {
		t.Errorf("radius = %.3f, want 60 +/- 2", c.Radius)
	}
}

func TestFitCircleDeterministic(t *testing.T) {
	points := circlePoints(40, 60, 25, 90)

	a, err := FitCircle(points, 1e-5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := FitCircle(points, 1e-5)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("repeated fits differ: %+v vs %+v", a, b)
	}
}

func TestFitCircleDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		points contour.PointSet
	}{
		{"too few points", contour.PointSet{{Row: 0, Col: 0}, {Row: 1, Col: 1}}},
		{"collinear horizontal", contour.PointSet{{Row: 5, Col: 0}, {Row: 5, Col: 10}, {Row: 5, Col: 20}, {Row: 5, Col: 30}}},
		{"collinear diagonal", contour.PointSet{{Row: 0, Col: 0}, {Row: 10, Col: 10}, {Row: 20, Col: 20}}},
		{"all coincident", contour.PointSet{{Row: 3, Col: 3}, {Row: 3, Col: 3}, {Row: 3, Col: 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitCircle(tt.points, 1e-5)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrFit) {
				t.Errorf("error should wrap ErrFit, got %v", err)
			}
		})
	}
}

func TestFitCircleDefaultTolerance(t *testing.T) {
	points := circlePoints(50, 50, 30, 60)
	if _, err := FitCircle(points, 0); err != nil {
		t.Fatalf("zero tolerance should fall back to the default: %v", err)
	}
}
