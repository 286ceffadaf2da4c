package export

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// schema holds one row per run, one per frame, and one per profile point.
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	video_path  TEXT,
	calibration TEXT NOT NULL,
	config      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS frames (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	frame_number INTEGER NOT NULL,
	center_x     REAL NOT NULL,
	center_y     REAL NOT NULL,
	radius       REAL NOT NULL,
	residual     REAL NOT NULL,
	scale_ratio  REAL NOT NULL,
	point_count  INTEGER NOT NULL,
	PRIMARY KEY (run_id, frame_number)
);
CREATE TABLE IF NOT EXISTS profile_points (
	run_id       TEXT NOT NULL,
	frame_number INTEGER NOT NULL,
	seq          INTEGER NOT NULL,
	angle        REAL NOT NULL,
	distance     REAL NOT NULL,
	row          INTEGER NOT NULL,
	col          INTEGER NOT NULL,
	excluded     INTEGER NOT NULL,
	PRIMARY KEY (run_id, frame_number, seq)
);
`

// SQLiteSink stores all records of a run in a single SQLite database.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLiteSink opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite %s: %v", ErrExport, path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: create schema: %v", ErrExport, err)
	}
	return &SQLiteSink{db: db}, nil
}

// Begin inserts the run row and remembers its ID for frame writes.
func (s *SQLiteSink) Begin(meta RunMetadata) error {
	calJSON, err := json.Marshal(meta.Calibration)
	if err != nil {
		return fmt.Errorf("%w: marshal calibration: %v", ErrExport, err)
	}
	cfgJSON, err := json.Marshal(meta.Config)
	if err != nil {
		return fmt.Errorf("%w: marshal config: %v", ErrExport, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (id, created_at, video_path, calibration, config) VALUES (?, ?, ?, ?, ?)`,
		meta.RunID, meta.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		meta.VideoPath, string(calJSON), string(cfgJSON),
	)
	if err != nil {
		return fmt.Errorf("%w: insert run: %v", ErrExport, err)
	}
	s.runID = meta.RunID
	return nil
}

// WriteFrame inserts the frame row and its profile points in one transaction.
func (s *SQLiteSink) WriteFrame(rec FrameRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrExport, err)
	}

	_, err = tx.Exec(
		`INSERT INTO frames (run_id, frame_number, center_x, center_y, radius, residual, scale_ratio, point_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, rec.FrameNumber, rec.Fit.Center.X, rec.Fit.Center.Y,
		rec.Fit.Radius, rec.Fit.Residual, rec.Fit.ScaleRatio, len(rec.Entries),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: insert frame %d: %v", ErrExport, rec.FrameNumber, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO profile_points (run_id, frame_number, seq, angle, distance, row, col, excluded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("%w: prepare point insert: %v", ErrExport, err)
	}
	defer stmt.Close()

	for i, e := range rec.Entries {
		excluded := 0
		if e.Excluded {
			excluded = 1
		}
		if _, err := stmt.Exec(s.runID, rec.FrameNumber, i,
			e.AngleDegrees, e.DistancePhysical, e.Row, e.Col, excluded); err != nil {
			tx.Rollback()
			return fmt.Errorf("%w: insert point %d of frame %d: %v", ErrExport, i, rec.FrameNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit frame %d: %v", ErrExport, rec.FrameNumber, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("%w: close sqlite: %v", ErrExport, err)
	}
	return nil
}
