package contour

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ExtractContour runs the full preprocessing chain on a raw frame:
// crop, grayscale, median filter, Gaussian blur, Canny edge detection,
// then one or two connected-component size filters.
//
// The first size filter applies the fixed MinComponentPixels floor. When
// AdaptiveFraction is set, a second pass recomputes the floor from the
// surviving point count and re-filters; this discards secondary contours
// such as reflections while keeping the dominant boundary. The second floor
// is derived from the first pass's output, so the order is fixed.
func ExtractContour(frame gocv.Mat, p Params) (PointSet, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("extract contour: empty frame")
	}

	crop := image.Rect(p.Crop.X, p.Crop.Y, p.Crop.X+p.Crop.Width, p.Crop.Y+p.Crop.Height)
	if !crop.In(image.Rect(0, 0, frame.Cols(), frame.Rows())) {
		return nil, fmt.Errorf("extract contour: crop %v exceeds frame %dx%d",
			crop, frame.Cols(), frame.Rows())
	}

	region := frame.Region(crop)
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() == 1 {
		region.CopyTo(&gray)
	} else {
		gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)
	}

	// Median filter suppresses speckle while preserving the boundary step.
	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.MedianBlur(gray, &filtered, p.FilterKernel)

	// Gaussian blur with the configured sigma; kernel size derived from it.
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(filtered, &blurred, image.Point{}, p.BlurSigma, p.BlurSigma, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(p.EdgeLow), float32(p.EdgeHigh))

	points := removeSmallComponents(edges, p.MinComponentPixels)
	if len(points) == 0 {
		return nil, fmt.Errorf("extract contour: %w after size filter (floor %d)",
			ErrEmptyContour, p.MinComponentPixels)
	}

	if p.AdaptiveFraction > 0 {
		adaptiveFloor := int(math.Floor(float64(len(points)) * p.AdaptiveFraction))
		if adaptiveFloor > p.MinComponentPixels {
			refined := filterPoints(points, edges.Rows(), edges.Cols(), adaptiveFloor)
			if len(refined) == 0 {
				return nil, fmt.Errorf("extract contour: %w after adaptive filter (floor %d)",
					ErrEmptyContour, adaptiveFloor)
			}
			points = refined
		}
	}

	return points, nil
}

// removeSmallComponents labels the binary edge mask and returns the pixels of
// every connected component at least minPixels in size, in row-major order.
// Equivalent to bwareaopen followed by nonzero extraction.
func removeSmallComponents(mask gocv.Mat, minPixels int) PointSet {
	labels := gocv.NewMat()
	defer labels.Close()

	n := gocv.ConnectedComponents(mask, &labels)
	if n <= 1 {
		return nil
	}

	areas := make([]int, n)
	for r := 0; r < labels.Rows(); r++ {
		for c := 0; c < labels.Cols(); c++ {
			areas[labels.GetIntAt(r, c)]++
		}
	}

	var points PointSet
	for r := 0; r < labels.Rows(); r++ {
		for c := 0; c < labels.Cols(); c++ {
			label := labels.GetIntAt(r, c)
			if label == 0 {
				continue
			}
			if areas[label] >= minPixels {
				points = append(points, Point{Row: r, Col: c})
			}
		}
	}
	return points
}

// filterPoints re-runs the component size filter on an already-extracted
// point set by rebuilding the mask and labeling it again with a new floor.
func filterPoints(points PointSet, rows, cols, minPixels int) PointSet {
	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	defer mask.Close()
	for _, p := range points {
		mask.SetUCharAt(p.Row, p.Col, 255)
	}
	return removeSmallComponents(mask, minPixels)
}
