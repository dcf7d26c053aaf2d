// Package session ties one capture session together: it drives the gate
// engine, keeps the latest frame and result, and gates captures on PASS.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facegate/pkg/audit"
	"github.com/teslashibe/facegate/pkg/camera"
	"github.com/teslashibe/facegate/pkg/detection"
	"github.com/teslashibe/facegate/pkg/gate"
	"github.com/teslashibe/facegate/pkg/quality"
)

var (
	// ErrCaptureDisabled is returned by Capture unless the latest decision is PASS.
	ErrCaptureDisabled = errors.New("capture disabled: need PASS")

	// ErrEnded is returned after End.
	ErrEnded = errors.New("session ended")
)

// Status is a snapshot for the dashboard.
type Status struct {
	SessionID    int64        `json:"session_id"`
	Result       *gate.Result `json:"result"`
	UpdatedAt    time.Time    `json:"updated_at"`
	RemoteAdvice bool         `json:"remote_advice"`
	Ended        bool         `json:"ended"`
}

// Session is safe for concurrent use: the capture loop calls Process while
// the dashboard calls Capture, Status and End.
type Session struct {
	// tick serializes engine calls; mu guards the fields below it and is
	// never held across a tick.
	tick sync.Mutex
	mu   sync.Mutex

	engine    *gate.Engine
	sessionID int64
	outputDir string

	frame     gocv.Mat
	latest    *gate.Result
	updatedAt time.Time
	summary   *audit.Summary
}

// New creates a session writing captures below outputDir.
func New(engine *gate.Engine, sessionID int64, outputDir string) *Session {
	return &Session{
		engine:    engine,
		sessionID: sessionID,
		outputDir: outputDir,
		frame:     gocv.NewMat(),
	}
}

// Process runs one frame through the gate and remembers it as the latest.
func (s *Session) Process(ctx context.Context, frame gocv.Mat, det *detection.Detection, now time.Time, fps float64) (gate.Result, error) {
	s.tick.Lock()
	defer s.tick.Unlock()

	if s.ended() {
		return gate.Result{}, ErrEnded
	}

	res, err := s.engine.ProcessTick(ctx, gate.Tick{
		Frame:     &frame,
		Detection: det,
		Now:       now,
		FPS:       fps,
		Width:     frame.Cols(),
		Height:    frame.Rows(),
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if !frame.Empty() {
		frame.CopyTo(&s.frame)
	}
	s.latest = &res
	s.updatedAt = now
	return res, err
}

func (s *Session) ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary != nil
}

// Capture saves the latest frame when its decision was PASS. It returns
// ErrEnded once the session is over.
func (s *Session) Capture(now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.summary != nil {
		return "", ErrEnded
	}
	if s.latest == nil || s.latest.Decision != quality.Pass || s.frame.Empty() {
		return "", ErrCaptureDisabled
	}
	return camera.SaveCapture(s.outputDir, s.frame, now)
}

// SetRemoteAdvice toggles remote advice and reports the effective state.
func (s *Session) SetRemoteAdvice(enabled bool) bool {
	s.engine.SetRemoteEnabled(enabled)
	return s.engine.RemoteEnabled()
}

// Status returns the latest state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		SessionID:    s.sessionID,
		UpdatedAt:    s.updatedAt,
		RemoteAdvice: s.engine.RemoteEnabled(),
		Ended:        s.summary != nil,
	}
	if s.latest != nil {
		r := *s.latest
		st.Result = &r
	}
	return st
}

// Summary returns the final summary, or nil while the session is running.
func (s *Session) Summary() *audit.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// End closes the audit trail. Later calls return ErrEnded.
func (s *Session) End(now time.Time) (audit.Summary, error) {
	s.tick.Lock()
	defer s.tick.Unlock()

	s.mu.Lock()
	if s.summary != nil {
		sum := *s.summary
		s.mu.Unlock()
		return sum, ErrEnded
	}
	s.mu.Unlock()

	sum, err := s.engine.EndSession(now)

	s.mu.Lock()
	s.summary = &sum
	s.mu.Unlock()
	return sum, err
}

// Close frees the retained frame.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame.Close()
}
