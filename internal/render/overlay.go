// Package render draws annotated preview images of analyzed frames.
// Previews are side artifacts: failures are logged, never fatal.
package render

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/internal/fit"
	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

var (
	contourColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}
	circleColor  = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	centerColor  = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Overlay renders the cropped frame with the detected contour, the fitted
// circle, and a center cross. The caller owns the returned Mat.
func Overlay(frame gocv.Mat, crop geometry.RectInt, points contour.PointSet, circle fit.Circle) gocv.Mat {
	region := frame.Region(image.Rect(crop.X, crop.Y, crop.X+crop.Width, crop.Y+crop.Height))
	defer region.Close()

	out := gocv.NewMat()
	if frame.Channels() == 1 {
		gocv.CvtColor(region, &out, gocv.ColorGrayToBGR)
	} else {
		region.CopyTo(&out)
	}

	for _, p := range points {
		gocv.Circle(&out, image.Pt(p.Col, p.Row), 1, contourColor, -1)
	}

	center := image.Pt(int(circle.Center.X+0.5), int(circle.Center.Y+0.5))
	gocv.Circle(&out, center, int(circle.Radius+0.5), circleColor, 1)
	gocv.Line(&out, image.Pt(center.X-5, center.Y), image.Pt(center.X+5, center.Y), centerColor, 1)
	gocv.Line(&out, image.Pt(center.X, center.Y-5), image.Pt(center.X, center.Y+5), centerColor, 1)

	return out
}

// Writer saves one overlay PNG per observed frame into a directory. Its
// Observe method matches the pipeline observer signature.
type Writer struct {
	dir  string
	crop geometry.RectInt
}

// NewWriter creates the preview directory.
func NewWriter(dir string, crop geometry.RectInt) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create preview dir: %w", err)
	}
	return &Writer{dir: dir, crop: crop}, nil
}

// Observe renders and saves the annotated preview for one frame.
func (w *Writer) Observe(frameNumber int, frame gocv.Mat, points contour.PointSet, circle fit.Circle) {
	overlay := Overlay(frame, w.crop, points, circle)
	defer overlay.Close()

	path := filepath.Join(w.dir, fmt.Sprintf("frame_%06d.png", frameNumber))
	if ok := gocv.IMWrite(path, overlay); !ok {
		log.Printf("preview: failed to write %s", path)
	}
}
