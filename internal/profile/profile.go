// Package profile re-parameterizes a droplet boundary as angle/distance
// pairs around the fitted circle center.
package profile

import (
	"math"
	"sort"

	"github.com/jhsu22/droplet-analyzer/internal/calibrate"
	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/internal/fit"
	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

// exclusionMarginPx widens the near-center exclusion radius beyond the
// calibration radius. Points closer than AverageRadiusPx + margin are
// support-structure pixels or fit artifacts, not droplet boundary.
const exclusionMarginPx = 5

// Entry is one boundary point expressed as an angle around the fitted
// center and a physical radial distance.
//
// Excluded entries keep their slot (the angle/distance/row/column channels
// stay positionally aligned) but have angle and distance zeroed.
type Entry struct {
	AngleDegrees     float64 `json:"angle_degrees"`
	DistancePhysical float64 `json:"distance_physical"`
	Row              int     `json:"row"`
	Col              int     `json:"col"`
	Excluded         bool    `json:"excluded,omitempty"`
}

// Build maps every contour point to an Entry relative to the fitted circle
// center. The output has exactly one entry per input point, in input order.
//
// Angles are measured with a two-argument arctangent rebased into [0, 360),
// with row values increasing downward in the image: a point on the same row
// to the right of the center is 0 degrees, a point straight above the center
// is 90 degrees. Distances are pixel distances divided by the calibration
// scale ratio.
//
// Points whose pixel distance to the center falls below the exclusion radius
// are zeroed in place and flagged Excluded.
func Build(points contour.PointSet, circle fit.Circle, cal calibrate.Result) []Entry {
	exclusionRadius := cal.AverageRadiusPx + exclusionMarginPx

	entries := make([]Entry, len(points))
	for i, p := range points {
		entries[i] = Entry{Row: p.Row, Col: p.Col}

		pt := geometry.Point2D{X: float64(p.Col), Y: float64(p.Row)}
		distPx := circle.Center.Distance(pt)
		if distPx < exclusionRadius {
			entries[i].Excluded = true
			continue
		}

		entries[i].AngleDegrees = angleDegrees(circle.Center, pt)
		entries[i].DistancePhysical = distPx / cal.ScaleRatio
	}
	return entries
}

// angleDegrees returns the angle of p around center, in [0, 360).
// The vertical axis is flipped so that angles grow counter-clockwise in the
// usual mathematical sense even though image rows grow downward.
func angleDegrees(center, p geometry.Point2D) float64 {
	deg := math.Atan2(center.Y-p.Y, p.X-center.X) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg -= 360
	}
	return deg
}

// SortByAngle orders entries by ascending angle, in place. The sort is
// stable: entries with equal angles keep their original contour order, so
// the angle, distance, row, and column channels remain mutually consistent.
func SortByAngle(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].AngleDegrees < entries[j].AngleDegrees
	})
}
