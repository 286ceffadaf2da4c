// Command fittest runs the full single-frame chain on an image: contour
// extraction, circle fit, and the angle-sorted boundary profile.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"gocv.io/x/gocv"

	"github.com/jhsu22/droplet-analyzer/internal/calibrate"
	"github.com/jhsu22/droplet-analyzer/internal/config"
	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/internal/fit"
	"github.com/jhsu22/droplet-analyzer/internal/profile"
	"github.com/jhsu22/droplet-analyzer/internal/video"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func main() {
	imagePath := flag.String("image", "", "Path to analysis frame (PNG, JPEG, TIFF, or BMP)")
	calibPath := flag.String("calib", "", "Path to calibration frame (defaults to the analysis frame)")
	configPath := flag.String("config", "", "Path to JSON config (defaults apply when empty)")
	head := flag.Int("head", 10, "Number of profile rows to print")
	flag.Parse()

	if *imagePath == "" {
		fmt.Println("Usage: fittest -image <path> [-calib <path>] [-config cfg.json] [-head 10]")
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

	if *calibPath == "" {
		*calibPath = *imagePath
	}

	cal, err := calibrateFrame(*calibPath, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Calibration failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Calibration: centroid=(%.1f, %.1f) radius=%.2fpx scale=%.6f\n",
		cal.Centroid.X, cal.Centroid.Y, cal.AverageRadiusPx, cal.ScaleRatio)

	frame, err := loadMat(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer frame.Close()

	points, err := contour.ExtractContour(frame, contour.Params{
		Crop:               cfg.CropRect,
		FilterKernel:       cfg.AnalysisFilterKernel,
		BlurSigma:          cfg.AnalysisEdgeThresholds.Sigma,
		EdgeLow:            cfg.AnalysisEdgeThresholds.Low,
		EdgeHigh:           cfg.AnalysisEdgeThresholds.High,
		MinComponentPixels: cfg.MinComponentPixels,
		AdaptiveFraction:   cfg.AdaptiveFraction,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Contour extraction failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Boundary points: %d\n", len(points))

	circle, err := fit.FitCircle(points, cfg.FitTolerance)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Circle fit failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Fit: center=(%.2f, %.2f) radius=%.2fpx residual=%.4f iterations=%d\n",
		circle.Center.X, circle.Center.Y, circle.Radius, circle.Residual, circle.Iterations)

	entries := profile.Build(points, circle, cal)
	profile.SortByAngle(entries)

	masked := 0
	for _, e := range entries {
		if e.Excluded {
			masked++
		}
	}
	fmt.Printf("Profile: %d entries, %d masked\n\n", len(entries), masked)

	fmt.Printf("%10s %12s %6s %6s %8s\n", "Angle", "Distance", "Row", "Col", "Masked")
	for i, e := range entries {
		if i >= *head {
			break
		}
		fmt.Printf("%10.2f %12.4f %6d %6d %8v\n",
			e.AngleDegrees, e.DistancePhysical, e.Row, e.Col, e.Excluded)
	}
}

func calibrateFrame(path string, cfg config.Config) (calibrate.Result, error) {
	frame, err := loadMat(path)
	if err != nil {
		return calibrate.Result{}, err
	}
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
		return calibrate.Result{}, err
	}
	return calibrate.Calibrate(points, cfg.KnownPhysicalReferenceLength)
}

func loadMat(path string) (frame gocv.Mat, err error) {
	f, err := os.Open(path)
	if err != nil {
		return frame, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return frame, fmt.Errorf("decode image: %w", err)
	}
	return video.ImageToMat(img), nil
}
