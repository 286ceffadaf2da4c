// Command calibtest runs the calibration stage on a single image and
// prints the derived centroid, radius, and pixel scale.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/jhsu22/droplet-analyzer/internal/calibrate"
	"github.com/jhsu22/droplet-analyzer/internal/config"
	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/internal/video"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func main() {
	imagePath := flag.String("image", "", "Path to calibration frame (PNG, JPEG, TIFF, or BMP)")
	configPath := flag.String("config", "", "Path to JSON config (defaults apply when empty)")
	refLength := flag.Float64("ref", 0, "Override reference length (physical units)")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: calibtest -image <path> [-config cfg.json] [-ref length]")
		os.Exit(1)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *refLength > 0 {
		cfg.KnownPhysicalReferenceLength = *refLength
	}

	f, err := os.Open(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to decode image: %v\n", err)
		os.Exit(1)
	}

	bounds := img.Bounds()
	fmt.Printf("Loaded %s image: %dx%d pixels\n", format, bounds.Dx(), bounds.Dy())
	fmt.Printf("Crop: %dx%d at (%d, %d)\n",
		cfg.CropRect.Width, cfg.CropRect.Height, cfg.CropRect.X, cfg.CropRect.Y)
	fmt.Printf("Filter kernel: %d  Canny: %.0f-%.0f  sigma: %.2f\n",
		cfg.CalibrationFilterKernel,
		cfg.CalibrationEdgeThresholds.Low, cfg.CalibrationEdgeThresholds.High,
		cfg.CalibrationEdgeThresholds.Sigma)

	frame := video.ImageToMat(img)
	defer frame.Close()

	points, err := contour.ExtractContour(frame, contour.Params{
		Crop:               cfg.CropRect,
		FilterKernel:       cfg.CalibrationFilterKernel,
		BlurSigma:          cfg.CalibrationEdgeThresholds.Sigma,
		EdgeLow:            cfg.CalibrationEdgeThresholds.Low,
		EdgeHigh:           cfg.CalibrationEdgeThresholds.High,
		MinComponentPixels: cfg.MinComponentPixels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Contour extraction failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nBoundary points: %d\n", len(points))

	result, err := calibrate.Calibrate(points, cfg.KnownPhysicalReferenceLength)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Centroid:       (%.2f, %.2f)\n", result.Centroid.X, result.Centroid.Y)
	fmt.Printf("Average radius: %.2f px\n", result.AverageRadiusPx)
	fmt.Printf("Scale ratio:    %.6f units/px\n", result.ScaleRatio)
}
