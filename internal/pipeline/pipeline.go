// Package pipeline orchestrates the per-frame analysis: one synchronous
// calibration pass, then a bounded worker pool over the frame range.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/jhsu22/droplet-analyzer/internal/calibrate"
	"github.com/jhsu22/droplet-analyzer/internal/config"
	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/internal/export"
	"github.com/jhsu22/droplet-analyzer/internal/fit"
	"github.com/jhsu22/droplet-analyzer/internal/profile"
	"github.com/jhsu22/droplet-analyzer/internal/video"
)

// calibrationFrameOffset places the calibration frame just after the start
// of the analysis range, where the reference is in view and the dispenser
// has not yet disturbed the droplet.
const calibrationFrameOffset = 1

// minBoundaryPoints is the smallest contour worth fitting; frames below it
// are skipped like empty ones.
const minBoundaryPoints = 5

// progressInterval controls how often the writer logs progress.
const progressInterval = 50

// Observer receives each successfully analyzed frame while its pixel data is
// still alive, for side artifacts such as annotated previews. Observer
// failures must not affect the run; implementations log and move on.
// Called concurrently from worker goroutines.
type Observer func(frameNumber int, frame gocv.Mat, points contour.PointSet, circle fit.Circle)

// Options configures a Run.
type Options struct {
	Config    config.Config
	Source    video.Source
	Sink      export.Sink
	VideoPath string

	// Observe, when set, is invoked for every valid frame.
	Observe Observer
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID       string
	Calibration calibrate.Result
	Processed   int // frames exported
	Skipped     int // unreadable frames or empty contours
	Invalid     int // degenerate or non-convergent fits
}

// result carries one frame's outcome from a worker to the writer.
// Exactly one of rec and err is meaningful; every frame in the range
// produces a result so the writer can release frames in order.
type result struct {
	frame int
	rec   *export.FrameRecord
	err   error
}

// Run calibrates against the reference frame, then processes every frame in
// [start, end] through a worker pool. Records are flushed to the sink in
// frame order, so identical inputs produce byte-identical output.
//
// Per-frame failures are logged and counted; calibration, configuration, and
// export failures abort the run.
func Run(ctx context.Context, opts Options) (Summary, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}

	end := cfg.EndFrame
	if max := opts.Source.Count() - 1; end > max {
		end = max
	}
	if cfg.StartFrame > end {
		return Summary{}, fmt.Errorf("%w: frame range [%d, %d] is empty for this source",
			config.ErrConfig, cfg.StartFrame, end)
	}

	cal, err := runCalibration(opts.Source, cfg, end)
	if err != nil {
		return Summary{}, err
	}
	log.Printf("calibration: centroid=(%.1f, %.1f) radius=%.2fpx scale=%.4f",
		cal.Centroid.X, cal.Centroid.Y, cal.AverageRadiusPx, cal.ScaleRatio)

	meta := export.RunMetadata{
		RunID:       uuid.NewString(),
		CreatedAt:   time.Now(),
		VideoPath:   opts.VideoPath,
		Calibration: cal,
		Config:      cfg,
	}
	if err := opts.Sink.Begin(meta); err != nil {
		return Summary{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	jobs := make(chan int)
	results := make(chan result, workers)

	go func() {
		defer close(jobs)
		for n := cfg.StartFrame; n <= end; n++ {
			select {
			case jobs <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				results <- processFrame(opts, cal, n)
			}
		}()
	}

	summary := Summary{RunID: meta.RunID, Calibration: cal}
	writerDone := make(chan struct{})
	var exportErr error

	// Single writer: serializes sink access and flushes records in frame
	// order through a reorder buffer, regardless of worker completion order.
	go func() {
		defer close(writerDone)
		pending := make(map[int]result, workers)
		next := cfg.StartFrame

		for r := range results {
			pending[r.frame] = r
			for {
				cur, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				next++

				if exportErr != nil {
					continue // draining after a fatal export failure
				}

				switch {
				case cur.rec != nil:
					if err := opts.Sink.WriteFrame(*cur.rec); err != nil {
						exportErr = err
						cancel()
						continue
					}
					summary.Processed++
					if summary.Processed%progressInterval == 0 {
						log.Printf("processed %d frames...", summary.Processed)
					}
				case errors.Is(cur.err, fit.ErrFit):
					summary.Invalid++
					log.Printf("frame %d: %v", cur.frame, cur.err)
				default:
					summary.Skipped++
					log.Printf("frame %d skipped: %v", cur.frame, cur.err)
				}
			}
		}
	}()

	wg.Wait()
	close(results)
	<-writerDone

	if exportErr != nil {
		return summary, exportErr
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// runCalibration extracts the reference contour with the calibration
// parameter set (large kernel, no adaptive pass) and derives the scale.
// Any failure here is fatal: without a valid scale no frame can be analyzed.
func runCalibration(src video.Source, cfg config.Config, end int) (calibrate.Result, error) {
	frameNum := cfg.StartFrame + calibrationFrameOffset
	if frameNum > end {
		frameNum = cfg.StartFrame
	}

	frame, err := src.Frame(frameNum)
	if err != nil {
		return calibrate.Result{}, fmt.Errorf("%w: read reference frame %d: %v",
			calibrate.ErrCalibration, frameNum, err)
	}
	defer frame.Close()

	points, err := contour.ExtractContour(frame, calibrationParams(cfg))
	if err != nil {
		return calibrate.Result{}, fmt.Errorf("%w: reference frame %d: %v",
			calibrate.ErrCalibration, frameNum, err)
	}
	log.Printf("calibration frame %d: %d edge points", frameNum, len(points))

	return calibrate.Calibrate(points, cfg.KnownPhysicalReferenceLength)
}

// processFrame runs the full per-frame chain. It depends only on the frame's
// own data and the immutable calibration result.
func processFrame(opts Options, cal calibrate.Result, n int) result {
	frame, err := opts.Source.Frame(n)
	if err != nil {
		return result{frame: n, err: err}
	}
	defer frame.Close()

	points, err := contour.ExtractContour(frame, analysisParams(opts.Config))
	if err != nil {
		return result{frame: n, err: err}
	}
	if len(points) < minBoundaryPoints {
		return result{frame: n, err: fmt.Errorf("%w: only %d boundary points",
			contour.ErrEmptyContour, len(points))}
	}

	circle, err := fit.FitCircle(points, opts.Config.FitTolerance)
	if err != nil {
		return result{frame: n, err: err}
	}

	entries := profile.Build(points, circle, cal)
	profile.SortByAngle(entries)

	if opts.Observe != nil {
		opts.Observe(n, frame, points, circle)
	}

	return result{frame: n, rec: &export.FrameRecord{
		FrameNumber: n,
		Entries:     entries,
		Fit: export.FitMetadata{
			Center:     circle.Center,
			Radius:     circle.Radius,
			Residual:   circle.Residual,
			ScaleRatio: cal.ScaleRatio,
		},
	}}
}

// calibrationParams builds the preprocessor parameter set for the reference
// frame: heavy median filtering and no adaptive pass.
func calibrationParams(cfg config.Config) contour.Params {
	return contour.Params{
		Crop:               cfg.CropRect,
		FilterKernel:       cfg.CalibrationFilterKernel,
		BlurSigma:          cfg.CalibrationEdgeThresholds.Sigma,
		EdgeLow:            cfg.CalibrationEdgeThresholds.Low,
		EdgeHigh:           cfg.CalibrationEdgeThresholds.High,
		MinComponentPixels: cfg.MinComponentPixels,
	}
}

// analysisParams builds the preprocessor parameter set for analysis frames,
// with the adaptive second filter pass enabled.
func analysisParams(cfg config.Config) contour.Params {
	return contour.Params{
		Crop:               cfg.CropRect,
		FilterKernel:       cfg.AnalysisFilterKernel,
		BlurSigma:          cfg.AnalysisEdgeThresholds.Sigma,
		EdgeLow:            cfg.AnalysisEdgeThresholds.Low,
		EdgeHigh:           cfg.AnalysisEdgeThresholds.High,
		MinComponentPixels: cfg.MinComponentPixels,
		AdaptiveFraction:   cfg.AdaptiveFraction,
	}
}
