package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"reflect"
	"testing"

	"gocv.io/x/gocv"

	"github.com/jhsu22/droplet-analyzer/internal/calibrate"
	"github.com/jhsu22/droplet-analyzer/internal/config"
	"github.com/jhsu22/droplet-analyzer/internal/contour"
	"github.com/jhsu22/droplet-analyzer/internal/export"
	"github.com/jhsu22/droplet-analyzer/internal/fit"
	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

// matSource serves pre-rendered frames, cloning on every call like a real
// decoder would.
type matSource struct {
	frames []gocv.Mat
}

func (s *matSource) Frame(index int) (gocv.Mat, error) {
	if index < 0 || index >= len(s.frames) {
		return gocv.Mat{}, fmt.Errorf("frame %d out of range", index)
	}
	return s.frames[index].Clone(), nil
}

func (s *matSource) Count() int { return len(s.frames) }

func (s *matSource) Close() error {
	for i := range s.frames {
		s.frames[i].Close()
	}
	return nil
}

// memSink collects records in memory, in write order.
type memSink struct {
	meta    export.RunMetadata
	records []export.FrameRecord
	failOn  int // frame number that triggers a write failure; -1 disables
}

func newMemSink() *memSink { return &memSink{failOn: -1} }

func (s *memSink) Begin(meta export.RunMetadata) error { s.meta = meta; return nil }

func (s *memSink) WriteFrame(rec export.FrameRecord) error {
	if rec.FrameNumber == s.failOn {
		return fmt.Errorf("%w: disk full", export.ErrExport)
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memSink) Close() error { return nil }

// ringMat draws a white ring (radius 85, thickness 10) centered at (250,250).
func ringMat() gocv.Mat {
	m := gocv.NewMatWithSize(500, 500, gocv.MatTypeCV8UC3)
	gocv.Circle(&m, image.Pt(250, 250), 85, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 10)
	return m
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.CropRect = geometry.RectInt{X: 0, Y: 0, Width: 500, Height: 500}
	cfg.MinComponentPixels = 50
	cfg.StartFrame = 0
	cfg.EndFrame = 5
	cfg.Workers = 3
	return cfg
}

func newRingSource(n int) *matSource {
	s := &matSource{}
	for i := 0; i < n; i++ {
		s.frames = append(s.frames, ringMat())
	}
	return s
}

func TestRunEndToEnd(t *testing.T) {
	src := newRingSource(6)
	defer src.Close()
	sink := newMemSink()

	summary, err := Run(context.Background(), Options{
		Config: testConfig(),
		Source: src,
		Sink:   sink,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.Processed != 6 || summary.Skipped != 0 || summary.Invalid != 0 {
		t.Fatalf("summary = %+v, want 6 processed", summary)
	}
	if summary.RunID == "" || sink.meta.RunID != summary.RunID {
		t.Error("run ID not propagated to the sink")
	}

	// Calibration recovers the ring mid radius (spec scenario: 85 +/- 2).
	if math.Abs(summary.Calibration.AverageRadiusPx-85) > 2 {
		t.Errorf("calibration radius = %.2f, want 85 +/- 2", summary.Calibration.AverageRadiusPx)
	}

	if len(sink.records) != 6 {
		t.Fatalf("got %d records, want 6", len(sink.records))
	}
	for i, rec := range sink.records {
		if rec.FrameNumber != i {
			t.Fatalf("records out of order: position %d holds frame %d", i, rec.FrameNumber)
		}
		if math.Abs(rec.Fit.Center.X-250) > 2 || math.Abs(rec.Fit.Center.Y-250) > 2 {
			t.Errorf("frame %d center = %+v, want (250,250) +/- 2", i, rec.Fit.Center)
		}
		if math.Abs(rec.Fit.Radius-85) > 2 {
			t.Errorf("frame %d radius = %.2f, want 85 +/- 2", i, rec.Fit.Radius)
		}
		for _, e := range rec.Entries {
			if e.Excluded {
				t.Errorf("frame %d: unexpected masked entry %+v", i, e)
			}
			if e.AngleDegrees < 0 || e.AngleDegrees >= 360 {
				t.Errorf("frame %d: angle %f outside [0,360)", i, e.AngleDegrees)
			}
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	src := newRingSource(4)
	defer src.Close()

	cfg := testConfig()
	cfg.EndFrame = 3

	run := func() []export.FrameRecord {
		sink := newMemSink()
		if _, err := Run(context.Background(), Options{Config: cfg, Source: src, Sink: sink}); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return sink.records
	}

	first := run()
	second := run()
	if !reflect.DeepEqual(first, second) {
		t.Error("two runs over identical input produced different records")
	}
}

func TestRunSkipsEmptyFrames(t *testing.T) {
	src := newRingSource(4)
	// Frame 2 is black: empty contour, skipped, run continues.
	src.frames[2].Close()
	src.frames[2] = gocv.NewMatWithSize(500, 500, gocv.MatTypeCV8UC3)
	defer src.Close()

	cfg := testConfig()
	cfg.EndFrame = 3
	sink := newMemSink()

	summary, err := Run(context.Background(), Options{Config: cfg, Source: src, Sink: sink})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Processed != 3 || summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want 3 processed / 1 skipped", summary)
	}
	for _, rec := range sink.records {
		if rec.FrameNumber == 2 {
			t.Error("skipped frame was exported")
		}
	}
}

func TestRunExportErrorFatal(t *testing.T) {
	src := newRingSource(6)
	defer src.Close()

	sink := newMemSink()
	sink.failOn = 2

	_, err := Run(context.Background(), Options{Config: testConfig(), Source: src, Sink: sink})
	if !errors.Is(err, export.ErrExport) {
		t.Fatalf("expected ErrExport, got %v", err)
	}
	// Frames 0 and 1 were flushed before the failure; nothing after it.
	for _, rec := range sink.records {
		if rec.FrameNumber >= 2 {
			t.Errorf("frame %d written after export failure", rec.FrameNumber)
		}
	}
}

func TestRunCalibrationFailureFatal(t *testing.T) {
	// All-black frames: the reference contour is empty.
	src := &matSource{}
	for i := 0; i < 3; i++ {
		src.frames = append(src.frames, gocv.NewMatWithSize(500, 500, gocv.MatTypeCV8UC3))
	}
	defer src.Close()

	cfg := testConfig()
	cfg.EndFrame = 2

	_, err := Run(context.Background(), Options{Config: cfg, Source: src, Sink: newMemSink()})
	if !errors.Is(err, calibrate.ErrCalibration) {
		t.Fatalf("expected ErrCalibration, got %v", err)
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	src := newRingSource(2)
	defer src.Close()

	cfg := testConfig()
	cfg.KnownPhysicalReferenceLength = -1

	_, err := Run(context.Background(), Options{Config: cfg, Source: src, Sink: newMemSink()})
	if !errors.Is(err, config.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestRunObserverSeesValidFrames(t *testing.T) {
	src := newRingSource(3)
	defer src.Close()

	cfg := testConfig()
	cfg.EndFrame = 2

	seen := make(chan int, 3)
	_, err := Run(context.Background(), Options{
		Config: cfg,
		Source: src,
		Sink:   newMemSink(),
		Observe: func(n int, frame gocv.Mat, points contour.PointSet, circle fit.Circle) {
			if frame.Empty() || len(points) == 0 || circle.Radius <= 0 {
				t.Errorf("observer got incomplete data for frame %d", n)
			}
			seen <- n
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(seen)

	got := map[int]bool{}
	for n := range seen {
		got[n] = true
	}
	for n := 0; n <= 2; n++ {
		if !got[n] {
			t.Errorf("observer never saw frame %d", n)
		}
	}
}
