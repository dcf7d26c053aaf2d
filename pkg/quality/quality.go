// Package quality turns a detected face region into normalized quality
// metrics and gates them through a fixed priority cascade of rules.
//
// Example usage:
//
//	m := quality.Extract(frame, quality.Region{X: 200, Y: 120, W: 180, H: 220}, 0.93)
//	decision, reason := quality.Evaluate(m, quality.DefaultThresholds())
package quality

import (
	"errors"
	"fmt"
)

// Decision is the three-valued gate outcome for a tick.
type Decision string

const (
	// Pass means the face is acceptable for capture.
	Pass Decision = "PASS"

	// NeedsFixing means the user can correct the problem.
	NeedsFixing Decision = "NEEDS_FIXING"

	// Fail means no face, or a face too unreliable to measure.
	Fail Decision = "FAIL"
)

// Reason explains a non-PASS decision. The zero value means none.
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNoFace        Reason = "no_face"
	ReasonLowConfidence Reason = "low_confidence"
	ReasonTooFar        Reason = "too_far"
	ReasonTooClose      Reason = "too_close"
	ReasonOffCenter     Reason = "off_center"
	ReasonLowLight      Reason = "low_light"
	ReasonTooBright     Reason = "too_bright"
	ReasonBlurry        Reason = "blurry"
)

// Reasons lists every known reason in rule order.
func Reasons() []Reason {
	return []Reason{
		ReasonNoFace,
		ReasonLowConfidence,
		ReasonTooFar,
		ReasonTooClose,
		ReasonOffCenter,
		ReasonLowLight,
		ReasonTooBright,
		ReasonBlurry,
	}
}

// Region is an axis-aligned rectangle in pixel coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Area returns the pixel area, or 0 for a degenerate rectangle.
func (r Region) Area() int {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Metrics are the per-tick quality measurements of one face region.
type Metrics struct {
	FaceConfidence float64 `json:"face_confidence"`
	FaceAreaRatio  float64 `json:"face_area_ratio"`
	DX             float64 `json:"dx"`
	DY             float64 `json:"dy"`
	Brightness     float64 `json:"brightness"`
	Blur           float64 `json:"blur"`
	BBox           Region  `json:"bbox"`
}

// Thresholds configure the rule cascade. Immutable for an engine's lifetime.
type Thresholds struct {
	MinConf  float64 `json:"min_conf" yaml:"min_conf"`
	MinArea  float64 `json:"min_area" yaml:"min_area"`
	MaxArea  float64 `json:"max_area" yaml:"max_area"`
	MaxDX    float64 `json:"max_dx" yaml:"max_dx"`
	MaxDY    float64 `json:"max_dy" yaml:"max_dy"`
	MinLight float64 `json:"min_light" yaml:"min_light"`
	MaxLight float64 `json:"max_light" yaml:"max_light"`
	MinBlur  float64 `json:"min_blur" yaml:"min_blur"`
}

// DefaultThresholds returns the thresholds used for webcam KYC capture.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinConf:  0.6,
		MinArea:  0.1,
		MaxArea:  0.5,
		MaxDX:    0.25,
		MaxDY:    0.25,
		MinLight: 60,
		MaxLight: 200,
		MinBlur:  50,
	}
}

// ErrInvalidThresholds is returned by Validate.
var ErrInvalidThresholds = errors.New("quality: invalid thresholds")

// Validate rejects negative values and inverted ranges.
func (t Thresholds) Validate() error {
	var errs []error

	if t.MinConf < 0 || t.MinConf > 1 {
		errs = append(errs, fmt.Errorf("min_conf %v outside [0,1]", t.MinConf))
	}
	if t.MinArea < 0 || t.MaxArea < 0 || t.MaxDX < 0 || t.MaxDY < 0 ||
		t.MinLight < 0 || t.MaxLight < 0 || t.MinBlur < 0 {
		errs = append(errs, errors.New("thresholds must not be negative"))
	}
	if t.MinArea > t.MaxArea {
		errs = append(errs, fmt.Errorf("min_area %v > max_area %v", t.MinArea, t.MaxArea))
	}
	if t.MinLight > t.MaxLight {
		errs = append(errs, fmt.Errorf("min_light %v > max_light %v", t.MinLight, t.MaxLight))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidThresholds, errors.Join(errs...))
}
