package detection

import (
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"
)

func TestDetection_Rect(t *testing.T) {
	d := Detection{X: 220, Y: 140, W: 200, H: 100}
	if got, want := d.Rect(), image.Rect(220, 140, 420, 240); got != want {
		t.Errorf("Rect: got %v, want %v", got, want)
	}
	if !(Detection{}).Rect().Empty() {
		t.Error("zero detection should give an empty rect")
	}
}

func TestDetection_Mirror(t *testing.T) {
	tests := []struct {
		name  string
		det   Detection
		width int
		wantX int
	}{
		{"left edge", Detection{X: 0, W: 100}, 640, 540},
		{"centered stays", Detection{X: 220, W: 200}, 640, 220},
		{"right edge", Detection{X: 600, W: 40}, 640, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := tc.det.Mirror(tc.width)
			if m.X != tc.wantX || m.W != tc.det.W {
				t.Errorf("Mirror: got X=%d W=%d, want X=%d W=%d", m.X, m.W, tc.wantX, tc.det.W)
			}
			if back := m.Mirror(tc.width); back != tc.det {
				t.Errorf("double mirror: got %+v, want %+v", back, tc.det)
			}
		})
	}
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name       string
		detections []Detection
		expectNil  bool
		expectIdx  int
	}{
		{
			name:       "empty list",
			detections: []Detection{},
			expectNil:  true,
		},
		{
			name:       "single detection",
			detections: []Detection{{X: 10, W: 50, H: 50, Confidence: 0.9}},
			expectIdx:  0,
		},
		{
			name: "confidence beats larger area",
			detections: []Detection{
				{X: 0, W: 400, H: 400, Confidence: 0.5},
				{X: 300, W: 50, H: 50, Confidence: 0.95},
			},
			expectIdx: 1,
		},
		{
			name: "ties keep first candidate",
			detections: []Detection{
				{X: 1, W: 10, H: 10, Confidence: 0.8},
				{X: 2, W: 90, H: 90, Confidence: 0.8},
			},
			expectIdx: 0,
		},
		{
			name: "best in the middle",
			detections: []Detection{
				{X: 1, Confidence: 0.2},
				{X: 2, Confidence: 0.7},
				{X: 3, Confidence: 0.6},
			},
			expectIdx: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			best := SelectBest(tc.detections)
			if tc.expectNil {
				if best != nil {
					t.Errorf("SelectBest: expected nil, got %+v", best)
				}
				return
			}

			if best == nil {
				t.Fatal("SelectBest: expected non-nil, got nil")
			}

			expected := tc.detections[tc.expectIdx]
			if *best != expected {
				t.Errorf("SelectBest: got %+v, want %+v", *best, expected)
			}
		})
	}
}

type fakeDetector struct {
	dets []Detection
	err  error
}

func (f *fakeDetector) Detect(gocv.Mat) ([]Detection, error) { return f.dets, f.err }
func (f *fakeDetector) Close() error                        { return nil }

func TestDetectBest(t *testing.T) {
	frame := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer frame.Close()

	best, err := DetectBest(&fakeDetector{dets: []Detection{
		{X: 1, Confidence: 0.4},
		{X: 2, Confidence: 0.9},
	}}, frame)
	if err != nil {
		t.Fatalf("DetectBest: %v", err)
	}
	if best == nil || best.X != 2 {
		t.Errorf("DetectBest: got %+v, want X=2", best)
	}

	best, err = DetectBest(&fakeDetector{}, frame)
	if err != nil || best != nil {
		t.Errorf("no faces: got %+v, %v", best, err)
	}

	boom := errors.New("boom")
	if _, err := DetectBest(&fakeDetector{err: boom}, frame); !errors.Is(err, boom) {
		t.Errorf("expected detector error, got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelPath == "" {
		t.Error("DefaultConfig: ModelPath should not be empty")
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("DefaultConfig: ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("DefaultConfig: input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
}

func TestYuNetNewInvalidPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	if _, err := NewYuNet(cfg); err == nil {
		t.Error("Expected error for invalid model path")
	}
}
