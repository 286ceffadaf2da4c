// Package config provides analyzer configuration loading and validation.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

// ErrConfig marks a fatal configuration error. Validation failures wrap it,
// so callers can test with errors.Is.
var ErrConfig = errors.New("invalid configuration")

// EdgeThresholds holds the gradient thresholds and blur sigma for the
// Canny edge detector.
type EdgeThresholds struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Sigma float64 `json:"sigma"`
}

// Config holds every tunable of the frame-processing pipeline.
// Zero values are not usable; start from Default() and override.
type Config struct {
	// CropRect is the region of each frame that contains the droplet.
	CropRect geometry.RectInt `json:"crop_rect"`

	// Median filter kernel sizes (odd). The calibration frame uses a much
	// larger kernel than analysis frames to flatten speckle around the
	// reference bead.
	CalibrationFilterKernel int `json:"calibration_filter_kernel"`
	AnalysisFilterKernel    int `json:"analysis_filter_kernel"`

	CalibrationEdgeThresholds EdgeThresholds `json:"calibration_edge_thresholds"`
	AnalysisEdgeThresholds    EdgeThresholds `json:"analysis_edge_thresholds"`

	// MinComponentPixels is the first-pass connected-component size floor.
	MinComponentPixels int `json:"min_component_pixels"`

	// AdaptiveFraction sets the second-pass component floor as a fraction
	// of the first-pass point count. Applied on analysis frames only.
	AdaptiveFraction float64 `json:"adaptive_fraction"`

	// KnownPhysicalReferenceLength is the real-world length of the
	// calibration reference, in the caller's physical unit. The pixel
	// scale ratio is derived from it once per run.
	KnownPhysicalReferenceLength float64 `json:"known_physical_reference_length"`

	// FitTolerance bounds the circle-fit parameter update at convergence.
	FitTolerance float64 `json:"fit_tolerance"`

	StartFrame int `json:"start_frame"`
	EndFrame   int `json:"end_frame"`

	// Workers sets the analysis pool size. Zero means GOMAXPROCS.
	Workers int `json:"workers,omitempty"`

	OutputDir string `json:"output_dir,omitempty"`
}

// Default returns the configuration tuned for the reference capture rig
// (1920x1080 video, backlit droplet).
func Default() Config {
	return Config{
		CropRect:                geometry.RectInt{X: 445, Y: 88, Width: 715, Height: 844},
		CalibrationFilterKernel: 15,
		AnalysisFilterKernel:    3,
		CalibrationEdgeThresholds: EdgeThresholds{
			Low:   25,
			High:  51,
			Sigma: 2.5,
		},
		AnalysisEdgeThresholds: EdgeThresholds{
			Low:   25,
			High:  51,
			Sigma: 2.5,
		},
		MinComponentPixels:           100,
		AdaptiveFraction:             1.0 / 3.0,
		KnownPhysicalReferenceLength: 1.0,
		FitTolerance:                 1e-5,
		StartFrame:                   5,
		EndFrame:                     545,
		OutputDir:                    "output",
	}
}

// Load reads a JSON config file. Missing keys keep their Default() values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration before any frame is read. All failures
// wrap ErrConfig and are fatal at startup.
func (c Config) Validate() error {
	if c.CropRect.Empty() || c.CropRect.X < 0 || c.CropRect.Y < 0 {
		return fmt.Errorf("%w: malformed crop rectangle %+v", ErrConfig, c.CropRect)
	}
	if err := validateKernel("calibration_filter_kernel", c.CalibrationFilterKernel); err != nil {
		return err
	}
	if err := validateKernel("analysis_filter_kernel", c.AnalysisFilterKernel); err != nil {
		return err
	}
	if err := validateThresholds("calibration_edge_thresholds", c.CalibrationEdgeThresholds); err != nil {
		return err
	}
	if err := validateThresholds("analysis_edge_thresholds", c.AnalysisEdgeThresholds); err != nil {
		return err
	}
	if c.MinComponentPixels < 0 {
		return fmt.Errorf("%w: min_component_pixels must be >= 0, got %d", ErrConfig, c.MinComponentPixels)
	}
	if c.AdaptiveFraction <= 0 || c.AdaptiveFraction >= 1 {
		return fmt.Errorf("%w: adaptive_fraction must be in (0,1), got %g", ErrConfig, c.AdaptiveFraction)
	}
	if c.KnownPhysicalReferenceLength <= 0 {
		return fmt.Errorf("%w: known_physical_reference_length must be > 0, got %g",
			ErrConfig, c.KnownPhysicalReferenceLength)
	}
	if c.FitTolerance <= 0 {
		return fmt.Errorf("%w: fit_tolerance must be > 0, got %g", ErrConfig, c.FitTolerance)
	}
	if c.StartFrame < 0 || c.EndFrame < c.StartFrame {
		return fmt.Errorf("%w: bad frame range [%d, %d]", ErrConfig, c.StartFrame, c.EndFrame)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrConfig, c.Workers)
	}
	return nil
}

func validateKernel(name string, size int) error {
	if size <= 0 || size%2 == 0 {
		return fmt.Errorf("%w: %s must be a positive odd number, got %d", ErrConfig, name, size)
	}
	return nil
}

func validateThresholds(name string, t EdgeThresholds) error {
	if t.Low < 0 || t.High <= t.Low {
		return fmt.Errorf("%w: %s requires 0 <= low < high, got low=%g high=%g",
			ErrConfig, name, t.Low, t.High)
	}
	if t.Sigma <= 0 {
		return fmt.Errorf("%w: %s sigma must be > 0, got %g", ErrConfig, name, t.Sigma)
	}
	return nil
}
