package video

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DirSource serves an image-sequence directory as a frame source: every
// decodable image file, in lexical order, is one frame. Used for still
// captures and for exercising the pipeline without a video container.
type DirSource struct {
	paths []string
}

// OpenDir scans a directory for image files (PNG, JPEG, TIFF, BMP).
func OpenDir(dir string) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("open frame dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("open frame dir %s: no image files", dir)
	}
	return &DirSource{paths: paths}, nil
}

// Frame decodes the index-th image file into a BGR Mat.
func (s *DirSource) Frame(index int) (gocv.Mat, error) {
	if index < 0 || index >= len(s.paths) {
		return gocv.Mat{}, fmt.Errorf("frame %d out of range [0, %d)", index, len(s.paths))
	}

	f, err := os.Open(s.paths[index])
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("read frame %d: %w", index, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("decode %s: %w", s.paths[index], err)
	}
	return ImageToMat(img), nil
}

// Count returns the number of image files found.
func (s *DirSource) Count() int {
	return len(s.paths)
}

// Close is a no-op; files are opened per frame.
func (s *DirSource) Close() error {
	return nil
}

// ImageToMat converts a Go image.Image to a BGR Mat in OpenCV channel order.
func ImageToMat(src image.Image) gocv.Mat {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat
}
