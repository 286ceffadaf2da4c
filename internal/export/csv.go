package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// CSVSink writes one profile CSV per frame plus a frames.csv metadata index
// and a run.json file into a directory.
type CSVSink struct {
	dir   string
	index *csv.Writer
	file  *os.File
}

// NewCSVSink creates the output directory and the metadata index.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrExport, err)
	}
	f, err := os.Create(filepath.Join(dir, "frames.csv"))
	if err != nil {
		return nil, fmt.Errorf("%w: create frame index: %v", ErrExport, err)
	}

	w := csv.NewWriter(f)
	header := []string{"frame", "center_x", "center_y", "radius", "residual", "scale_ratio", "points"}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: write index header: %v", ErrExport, err)
	}

	return &CSVSink{dir: dir, index: w, file: f}, nil
}

// Begin writes the run metadata as run.json alongside the CSVs.
func (s *CSVSink) Begin(meta RunMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal run metadata: %v", ErrExport, err)
	}
	path := filepath.Join(s.dir, "run.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrExport, path, err)
	}
	return nil
}

// WriteFrame writes frame_NNNNNN.csv with the sorted angle/distance/row/
// column channels and appends the fit metadata to the index.
func (s *CSVSink) WriteFrame(rec FrameRecord) error {
	path := filepath.Join(s.dir, fmt.Sprintf("frame_%06d.csv", rec.FrameNumber))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrExport, path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"angle_degrees", "distance_physical", "row", "column", "excluded"}); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrExport, path, err)
	}
	for _, e := range rec.Entries {
		row := []string{
			strconv.FormatFloat(e.AngleDegrees, 'g', -1, 64),
			strconv.FormatFloat(e.DistancePhysical, 'g', -1, 64),
			strconv.Itoa(e.Row),
			strconv.Itoa(e.Col),
			strconv.FormatBool(e.Excluded),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("%w: write %s: %v", ErrExport, path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("%w: flush %s: %v", ErrExport, path, err)
	}

	indexRow := []string{
		strconv.Itoa(rec.FrameNumber),
		strconv.FormatFloat(rec.Fit.Center.X, 'g', -1, 64),
		strconv.FormatFloat(rec.Fit.Center.Y, 'g', -1, 64),
		strconv.FormatFloat(rec.Fit.Radius, 'g', -1, 64),
		strconv.FormatFloat(rec.Fit.Residual, 'g', -1, 64),
		strconv.FormatFloat(rec.Fit.ScaleRatio, 'g', -1, 64),
		strconv.Itoa(len(rec.Entries)),
	}
	if err := s.index.Write(indexRow); err != nil {
		return fmt.Errorf("%w: append frame index: %v", ErrExport, err)
	}
	s.index.Flush()
	if err := s.index.Error(); err != nil {
		return fmt.Errorf("%w: flush frame index: %v", ErrExport, err)
	}
	return nil
}

// Close flushes the index.
func (s *CSVSink) Close() error {
	s.index.Flush()
	if err := s.index.Error(); err != nil {
		s.file.Close()
		return fmt.Errorf("%w: flush frame index: %v", ErrExport, err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("%w: close frame index: %v", ErrExport, err)
	}
	return nil
}
