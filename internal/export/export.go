// Package export persists per-frame analysis records to pluggable sinks.
package export

import (
	"errors"
	"time"

	"github.com/jhsu22/droplet-analyzer/internal/calibrate"
	"github.com/jhsu22/droplet-analyzer/internal/config"
	"github.com/jhsu22/droplet-analyzer/internal/profile"
	"github.com/jhsu22/droplet-analyzer/pkg/geometry"
)

// ErrExport marks a sink write failure. Export failures are fatal to the
// run: a partial per-frame dataset would corrupt downstream aggregation.
var ErrExport = errors.New("export failed")

// FitMetadata is the per-frame fit summary attached to every record.
type FitMetadata struct {
	Center     geometry.Point2D `json:"center"`
	Radius     float64          `json:"radius"`
	Residual   float64          `json:"residual"`
	ScaleRatio float64          `json:"scale_ratio"`
}

// FrameRecord is one frame's complete, angle-sorted analysis output.
type FrameRecord struct {
	FrameNumber int             `json:"frame_number"`
	Entries     []profile.Entry `json:"entries"`
	Fit         FitMetadata     `json:"fit"`
}

// RunMetadata identifies an analysis run and the immutable inputs it shares
// across frames. Written once, before any frame record.
type RunMetadata struct {
	RunID       string           `json:"run_id"`
	CreatedAt   time.Time        `json:"created_at"`
	VideoPath   string           `json:"video_path,omitempty"`
	Calibration calibrate.Result `json:"calibration"`
	Config      config.Config    `json:"config"`
}

// Sink receives run metadata followed by frame records. Implementations are
// not required to be safe for concurrent use; the pipeline serializes all
// writes through a single writer.
type Sink interface {
	// Begin is called once with the run metadata before any frame.
	Begin(meta RunMetadata) error

	// WriteFrame persists one frame record. Frames arrive in ascending
	// frame-number order.
	WriteFrame(rec FrameRecord) error

	// Close flushes and releases the sink.
	Close() error
}
