// Command droplet-analyzer measures pendant droplet geometry from video.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jhsu22/droplet-analyzer/internal/config"
	"github.com/jhsu22/droplet-analyzer/internal/export"
	"github.com/jhsu22/droplet-analyzer/internal/pipeline"
	"github.com/jhsu22/droplet-analyzer/internal/render"
	"github.com/jhsu22/droplet-analyzer/internal/report"
	"github.com/jhsu22/droplet-analyzer/internal/video"
)

const (
	appName    = "droplet-analyzer"
	appVersion = "0.1.0"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", "", "Path to JSON config (defaults apply when empty)")
	videoPath := flag.String("video", "", "Path to input video")
	framesDir := flag.String("frames", "", "Directory of frame images instead of a video")
	outDir := flag.String("out", "results", "Output directory")
	format := flag.String("format", "csv", "Export format: csv or json")
	sqlitePath := flag.String("sqlite", "", "Also record the run into this SQLite database")
	workers := flag.Int("workers", 0, "Worker pool size (0 = number of CPUs)")
	renderPreviews := flag.Bool("render", false, "Save annotated frame previews")
	writeReport := flag.Bool("report", false, "Write HTML charts alongside the export")
	writeConfig := flag.String("write-config", "", "Write the effective config to this path and exit")
	flag.Parse()

	log.Printf("Starting %s v%s", appName, appVersion)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = *outDir
	}

	if *writeConfig != "" {
		if err := cfg.Save(*writeConfig); err != nil {
			log.Fatalf("write config: %v", err)
		}
		log.Printf("Wrote config to %s", *writeConfig)
		return
	}

	if *videoPath == "" && *framesDir == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s -video <path> [flags]\n       %s -frames <dir> [flags]\n\n", appName, appName)
		flag.PrintDefaults()
		os.Exit(1)
	}

	source, inputPath, err := openSource(*videoPath, *framesDir)
	if err != nil {
		log.Fatalf("open source: %v", err)
	}
	defer source.Close()
	log.Printf("Source: %s (%d frames)", inputPath, source.Count())

	sink, err := buildSink(cfg.OutputDir, *format, *sqlitePath)
	if err != nil {
		log.Fatalf("open sink: %v", err)
	}

	var collected *recordingSink
	if *writeReport {
		collected = &recordingSink{next: sink}
		sink = collected
	}

	opts := pipeline.Options{
		Config:    cfg,
		Source:    source,
		Sink:      sink,
		VideoPath: inputPath,
	}

	if *renderPreviews {
		w, err := render.NewWriter(filepath.Join(cfg.OutputDir, "previews"), cfg.CropRect)
		if err != nil {
			log.Fatalf("preview dir: %v", err)
		}
		opts.Observe = w.Observe
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	summary, err := pipeline.Run(ctx, opts)
	if err != nil {
		log.Fatalf("run: %v", err)
	}

	log.Printf("Run %s finished in %s: %d processed, %d skipped, %d invalid",
		summary.RunID, time.Since(started).Round(time.Millisecond),
		summary.Processed, summary.Skipped, summary.Invalid)

	if collected != nil {
		if err := writeCharts(cfg.OutputDir, collected.frames); err != nil {
			log.Printf("report: %v", err)
		}
	}
}

func openSource(videoPath, framesDir string) (video.Source, string, error) {
	if framesDir != "" {
		src, err := video.OpenDir(framesDir)
		return src, framesDir, err
	}
	src, err := video.OpenVideo(videoPath)
	return src, videoPath, err
}

func buildSink(outDir, format, sqlitePath string) (export.Sink, error) {
	var primary export.Sink
	var err error
	switch format {
	case "csv":
		primary, err = export.NewCSVSink(outDir)
	case "json":
		primary, err = export.NewJSONSink(outDir)
	default:
		return nil, fmt.Errorf("unknown format %q (want csv or json)", format)
	}
	if err != nil {
		return nil, err
	}
	if sqlitePath == "" {
		return primary, nil
	}
	db, err := export.NewSQLiteSink(sqlitePath)
	if err != nil {
		return nil, err
	}
	return multiSink{primary, db}, nil
}

func writeCharts(outDir string, frames []export.FrameRecord) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to chart")
	}

	f, err := os.Create(filepath.Join(outDir, "radius.html"))
	if err != nil {
		return err
	}
	if err := report.RadiusTrend(f, frames); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	last := frames[len(frames)-1]
	f, err = os.Create(filepath.Join(outDir, "profile.html"))
	if err != nil {
		return err
	}
	if err := report.Profile(f, last.FrameNumber, last.Entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// recordingSink keeps frame records in memory for post-run charting while
// forwarding them to the real sink. The pipeline's writer goroutine is the
// only caller, so no locking is needed.
type recordingSink struct {
	next   export.Sink
	frames []export.FrameRecord
}

func (s *recordingSink) Begin(meta export.RunMetadata) error { return s.next.Begin(meta) }

func (s *recordingSink) WriteFrame(rec export.FrameRecord) error {
	s.frames = append(s.frames, rec)
	return s.next.WriteFrame(rec)
}

func (s *recordingSink) Close() error { return s.next.Close() }

// multiSink fans every record out to all sinks, stopping at the first error.
type multiSink []export.Sink

func (m multiSink) Begin(meta export.RunMetadata) error {
	for _, s := range m {
		if err := s.Begin(meta); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) WriteFrame(rec export.FrameRecord) error {
	for _, s := range m {
		if err := s.WriteFrame(rec); err != nil {
			return err
		}
	}
	return nil
}

func (m multiSink) Close() error {
	var firstErr error
	for _, s := range m {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
