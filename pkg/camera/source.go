package camera

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrReadFailed is returned when the device yields no frame.
var ErrReadFailed = errors.New("camera: read failed")

// Source is an opened capture device.
type Source struct {
	mu  sync.Mutex
	cap *gocv.VideoCapture
}

// Open opens the device named in cfg and applies its size and framerate.
func Open(cfg Config) (*Source, error) {
	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", cfg.Device, err)
	}
	s := &Source{cap: vc}
	s.Apply(cfg)
	return s, nil
}

// OpenFile opens a video file instead of a device, for replaying sessions.
func OpenFile(path string) (*Source, error) {
	vc, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("open video %q: %w", path, err)
	}
	return &Source{cap: vc}, nil
}

// Apply requests a new size and framerate. The driver may pick the nearest
// supported mode; Read reports what is actually delivered.
func (s *Source) Apply(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	s.cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	s.cap.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	return nil
}

// Read grabs the next frame into dst.
func (s *Source) Read(dst *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok := s.cap.Read(dst); !ok || dst.Empty() {
		return ErrReadFailed
	}
	return nil
}

// Close releases the device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cap.Close()
}

// EncodeJPEG compresses frame for the dashboard preview.
func EncodeJPEG(frame gocv.Mat, quality int) ([]byte, error) {
	if frame.Empty() {
		return nil, errors.New("camera: empty frame")
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases C memory freed by Close.
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// SaveCapture writes frame as <dir>/captures/capture_<unix>.jpg and returns the path.
func SaveCapture(dir string, frame gocv.Mat, now time.Time) (string, error) {
	if frame.Empty() {
		return "", errors.New("camera: empty frame")
	}
	capDir := filepath.Join(dir, "captures")
	if err := os.MkdirAll(capDir, 0o755); err != nil {
		return "", fmt.Errorf("create capture dir: %w", err)
	}

	path := filepath.Join(capDir, fmt.Sprintf("capture_%d.jpg", now.Unix()))
	if ok := gocv.IMWrite(path, frame); !ok {
		return "", fmt.Errorf("write capture %q", path)
	}
	return path, nil
}
