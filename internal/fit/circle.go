// Package fit estimates the circle best explaining a boundary point set.
package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// ErrFit marks a degenerate or non-convergent circle fit. The frame is
// unusable but the failure is not fatal to the run.
var ErrFit = errors.New("circle fit failed")

// maxIterations bounds the Gauss-Newton refinement. The fit either converges
// within this many steps or the frame is rejected; there is no unbounded loop.
const maxIterations = 100

// defaultTolerance is used when the caller passes a non-positive tolerance.
const defaultTolerance = 1e-5

// Circle is a least-squares circle fit result.
type Circle struct {
	Center geometry.Point2D `json:"center"`
	Radius float64          `json:"radius"`

	// Residual is the RMS deviation of point-to-center distances from the
	// fitted radius, in pixels.
	Residual float64 `json:"residual"`

	// Iterations is the number of Gauss-Newton steps taken.
	Iterations int `json:"iterations"`
}

// FitCircle fits a circle to the point set by algebraic least squares (Kasa)
// followed by Gauss-Newton geometric refinement. The refinement converges
// when the parameter update norm drops below tol.
func FitCircle(points contour.PointSet, tol float64) (Circle, error) {
	if tol <= 0 {
		tol = defaultTolerance
	}
	if len(points) < 3 {
		return Circle{}, fmt.Errorf("%w: need at least 3 points, got %d", ErrFit, len(points))
	}

	pts := points.Points2D()
	if collinear(pts) {
		return Circle{}, fmt.Errorf("%w: points are collinear", ErrFit)
	}

	c, err := kasaSeed(pts)
	if err != nil {
		return Circle{}, err
	}

	c, iters, err := refine(pts, c, tol)
	if err != nil {
		return Circle{}, err
	}
	if c.Radius <= 0 {
		return Circle{}, fmt.Errorf("%w: non-positive radius %g", ErrFit, c.Radius)
	}

	return Circle{
		Center:     c.Center,
		Radius:     c.Radius,
		Residual:   rms(pts, c),
		Iterations: iters,
	}, nil
}

// kasaSeed solves the algebraic circle equation
//
//	x^2 + y^2 = a*x + b*y + c
//
// as an overdetermined linear system, giving center (a/2, b/2) and radius
// sqrt(c + cx^2 + cy^2). Fast and closed-form, but biased for partial arcs,
// so it only seeds the geometric refinement.
func kasaSeed(pts []geometry.Point2D) (geometry.Circle, error) {
	n := len(pts)
	A := mat.NewDense(n, 3, nil)
	B := mat.NewVecDense(n, nil)

	for i, p := range pts {
		A.Set(i, 0, p.X)
		A.Set(i, 1, p.Y)
		A.Set(i, 2, 1)
		B.SetVec(i, p.X*p.X+p.Y*p.Y)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.Circle{}, fmt.Errorf("%w: algebraic seed: %v", ErrFit, err)
	}

	cx := params.AtVec(0) / 2
	cy := params.AtVec(1) / 2
	r2 := params.AtVec(2) + cx*cx + cy*cy
	if r2 <= 0 {
		return geometry.Circle{}, fmt.Errorf("%w: algebraic seed produced imaginary radius", ErrFit)
	}

	return geometry.Circle{
		Center: geometry.Point2D{X: cx, Y: cy},
		Radius: math.Sqrt(r2),
	}, nil
}

// refine runs Gauss-Newton on (cx, cy, r), minimizing the sum of squared
// deviations of point distances from the radius.
func refine(pts []geometry.Point2D, seed geometry.Circle, tol float64) (geometry.Circle, int, error) {
	n := len(pts)
	c := seed

	J := mat.NewDense(n, 3, nil)
	res := mat.NewVecDense(n, nil)

	for iter := 1; iter <= maxIterations; iter++ {
		for i, p := range pts {
			d := c.Center.Distance(p)
			if d < 1e-12 {
				// A point exactly at the center has no defined direction;
				// nudge the distance to keep the Jacobian finite.
				d = 1e-12
			}
			J.Set(i, 0, -(p.X-c.Center.X)/d)
			J.Set(i, 1, -(p.Y-c.Center.Y)/d)
			J.Set(i, 2, -1)
			res.SetVec(i, -(d - c.Radius))
		}

		var qr mat.QR
		qr.Factorize(J)

		var step mat.VecDense
		if err := qr.SolveVecTo(&step, false, res); err != nil {
			return geometry.Circle{}, iter, fmt.Errorf("%w: refinement step: %v", ErrFit, err)
		}

		c.Center.X += step.AtVec(0)
		c.Center.Y += step.AtVec(1)
		c.Radius += step.AtVec(2)

		if mat.Norm(&step, 2) < tol {
			return c, iter, nil
		}
	}

	return geometry.Circle{}, maxIterations, fmt.Errorf("%w: no convergence within %d iterations",
		ErrFit, maxIterations)
}

// collinear reports whether all points lie on a single line, within a small
// area tolerance. Collinear sets have no finite least-squares circle.
func collinear(pts []geometry.Point2D) bool {
	// Find a second point distinct from the first to define a direction.
	base := pts[0]
	refIdx := -1
	for i := 1; i < len(pts); i++ {
		if pts[i] != base {
			refIdx = i
			break
		}
	}
	if refIdx == -1 {
		return true
	}

	ux := pts[refIdx].X - base.X
	uy := pts[refIdx].Y - base.Y
	norm := math.Hypot(ux, uy)

	for _, p := range pts {
		// Cross product of (ref-base) and (p-base), normalized to a
		// perpendicular distance from the line.
		cross := ux*(p.Y-base.Y) - uy*(p.X-base.X)
		if math.Abs(cross)/norm > 1e-9 {
			return false
		}
	}
	return true
}

// rms computes the root-mean-square deviation of distances from the radius.
func rms(pts []geometry.Point2D, c geometry.Circle) float64 {
	var sum float64
	for _, p := range pts {
		dev := c.Center.Distance(p) - c.Radius
		sum += dev * dev
	}
	return math.Sqrt(sum / float64(len(pts)))
}
