// Package video supplies raster frames to the pipeline by integer index.
package video

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Source supplies frames by index within [0, Count). Implementations must be
// safe for concurrent Frame calls; the returned Mat is owned by the caller,
// who must Close it.
type Source interface {
	Frame(index int) (gocv.Mat, error)
	Count() int
	Close() error
}

// VideoSource reads frames from a video file. A single decoder handle is
// shared, so seek+read pairs are serialized with a mutex; the heavy per-frame
// processing still runs in parallel on the decoded copies.
type VideoSource struct {
	mu    sync.Mutex
	cap   *gocv.VideoCapture
	count int
	path  string
}

// OpenVideo opens a video file for indexed frame access.
func OpenVideo(path string) (*VideoSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("open video %s: decoder rejected file", path)
	}

	count := int(cap.Get(gocv.VideoCaptureFrameCount))
	if count <= 0 {
		cap.Close()
		return nil, fmt.Errorf("open video %s: no frames", path)
	}

	return &VideoSource{cap: cap, count: count, path: path}, nil
}

// Frame seeks to the given frame and decodes it into a fresh Mat.
func (s *VideoSource) Frame(index int) (gocv.Mat, error) {
	if index < 0 || index >= s.count {
		return gocv.Mat{}, fmt.Errorf("frame %d out of range [0, %d)", index, s.count)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cap.Set(gocv.VideoCapturePosFrames, float64(index))
	frame := gocv.NewMat()
	if ok := s.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, fmt.Errorf("read frame %d of %s: decode failed", index, s.path)
	}
	return frame, nil
}

// Count returns the number of frames reported by the container.
func (s *VideoSource) Count() int {
	return s.count
}

// FPS returns the container frame rate, for run summaries.
func (s *VideoSource) FPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cap.Get(gocv.VideoCaptureFPS)
}

// Close releases the decoder.
func (s *VideoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cap.Close()
}
