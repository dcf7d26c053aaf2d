// Package detection provides face detection using computer vision
package detection

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facegate/pkg/quality"
)

// Detection represents a detected face in pixel coordinates
type Detection struct {
	X, Y       int     // Top-left corner
	W, H       int     // Width and height
	Confidence float64 // Detection confidence (0-1)
}

// Rect returns the bounding box for drawing.
func (d Detection) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.W, d.Y+d.H)
}

// Mirror flips the box horizontally within a frame of the given width.
func (d Detection) Mirror(width int) Detection {
	d.X = width - d.X - d.W
	return d
}

// Region returns the bounding box as a quality region
func (d Detection) Region() quality.Region {
	return quality.Region{X: d.X, Y: d.Y, W: d.W, H: d.H}
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in a BGR frame
	Detect(frame gocv.Mat) ([]Detection, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration
type Config struct {
	ModelPath        string  // Path to ONNX model
	ConfidenceThresh float64 // Minimum confidence (default 0.6)
	InputWidth       int     // Model input width
	InputHeight      int     // Model input height
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// SelectBest reduces candidates to the single highest-confidence face.
// Ties keep the earliest candidate. Returns nil for an empty list.
func SelectBest(dets []Detection) *Detection {
	var best *Detection
	for i := range dets {
		if best == nil || dets[i].Confidence > best.Confidence {
			best = &dets[i]
		}
	}
	return best
}

// DetectBest runs d on frame and returns the best face, or nil if none.
func DetectBest(d Detector, frame gocv.Mat) (*Detection, error) {
	dets, err := d.Detect(frame)
	if err != nil {
		return nil, err
	}
	return SelectBest(dets), nil
}
