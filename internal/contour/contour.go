// Package contour extracts droplet boundary point sets from raw video frames.
package contour

import (
	"errors"

	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

// ErrEmptyContour is returned when edge detection and filtering leave no
// boundary points. The frame cannot be analyzed.
var ErrEmptyContour = errors.New("empty contour")

// Point is a single boundary pixel in crop coordinates.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// PointSet is an ordered collection of boundary pixels. Extraction scans the
// edge mask row-major, so the order is deterministic for a given frame.
type PointSet []Point

// Points2D converts the set to floating-point points (X=column, Y=row).
func (s PointSet) Points2D() []geometry.Point2D {
	out := make([]geometry.Point2D, len(s))
	for i, p := range s {
		out[i] = geometry.Point2D{X: float64(p.Col), Y: float64(p.Row)}
	}
	return out
}

// Params configures a single extraction pass.
type Params struct {
	// Crop is the frame region containing the droplet.
	Crop geometry.RectInt

	// FilterKernel is the median filter kernel size (odd).
	FilterKernel int

	// BlurSigma is the Gaussian smoothing sigma applied before Canny.
	BlurSigma float64

	// EdgeLow and EdgeHigh are the Canny gradient thresholds.
	EdgeLow  float64
	EdgeHigh float64

	// MinComponentPixels removes connected components smaller than this
	// many pixels from the edge mask.
	MinComponentPixels int

	// AdaptiveFraction, when > 0, enables the second filter pass with the
	// component floor recomputed as floor(pointCount * AdaptiveFraction).
	// The calibration frame runs with this disabled.
	AdaptiveFraction float64
}
