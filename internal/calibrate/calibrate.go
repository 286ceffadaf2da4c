// Package calibrate derives the physical pixel scale from a reference frame.
package calibrate

import (
	"errors"
	"fmt"

	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

// ErrCalibration marks a fatal calibration failure. Without a valid scale no
// per-frame processing can proceed.
var ErrCalibration = errors.New("calibration failed")

// Result holds the scale computed once from the reference frame. It is
// immutable and shared read-only by every subsequent per-frame computation.
type Result struct {
	// Centroid is the mean of the reference contour coordinates, in crop
	// pixels (X=column, Y=row).
	Centroid geometry.Point2D `json:"centroid"`

	// AverageRadiusPx is the mean distance from the reference contour to
	// its centroid. The profiler also uses it as the near-center noise
	// exclusion radius.
	AverageRadiusPx float64 `json:"average_radius_px"`

	// ScaleRatio converts pixel distances to physical units:
	// physical = pixels / ScaleRatio.
	ScaleRatio float64 `json:"scale_ratio"`
}

// Calibrate computes the centroid, average pixel radius, and scale ratio for
// a reference contour whose physical size referenceLength is known.
func Calibrate(points contour.PointSet, referenceLength float64) (Result, error) {
	if len(points) == 0 {
		return Result{}, fmt.Errorf("%w: empty reference contour", ErrCalibration)
	}
	if referenceLength <= 0 {
		return Result{}, fmt.Errorf("%w: reference length must be > 0, got %g",
			ErrCalibration, referenceLength)
	}

	pts := points.Points2D()
	centroid := geometry.Centroid(pts)

	var sum float64
	for _, p := range pts {
		sum += centroid.Distance(p)
	}
	avgRadius := sum / float64(len(pts))
	if avgRadius <= 0 {
		return Result{}, fmt.Errorf("%w: degenerate reference contour (all points at centroid)",
			ErrCalibration)
	}

	return Result{
		Centroid:        centroid,
		AverageRadiusPx: avgRadius,
		ScaleRatio:      avgRadius / referenceLength,
	}, nil
}
