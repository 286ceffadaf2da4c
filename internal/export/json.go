package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONSink writes one JSON record per frame plus run.json into a directory.
type JSONSink struct {
	dir string
}

// NewJSONSink creates the output directory.
func NewJSONSink(dir string) (*JSONSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", ErrExport, err)
	}
	return &JSONSink{dir: dir}, nil
}

// Begin writes the run metadata.
func (s *JSONSink) Begin(meta RunMetadata) error {
	return s.writeJSON("run.json", meta)
}

// WriteFrame writes frame_NNNNNN.json.
func (s *JSONSink) WriteFrame(rec FrameRecord) error {
	return s.writeJSON(fmt.Sprintf("frame_%06d.json", rec.FrameNumber), rec)
}

// Close is a no-op; every record is flushed as it is written.
func (s *JSONSink) Close() error {
	return nil
}

func (s *JSONSink) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrExport, name, err)
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrExport, path, err)
	}
	return nil
}
