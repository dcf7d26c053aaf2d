// Package audit records a rate-limited trail of gate ticks for one capture
// session and summarizes it when the session closes.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/facegate/pkg/quality"
)

// TickRecord is one persisted line of the session trail.
type TickRecord struct {
	ID        string           `json:"id"`
	Timestamp float64          `json:"ts"`
	Decision  quality.Decision `json:"decision,omitempty"`
	Reason    quality.Reason   `json:"reason,omitempty"`
	Metrics   *quality.Metrics `json:"metrics"`
	FPS       float64          `json:"fps"`
}

// NewTickRecord builds a record stamped with a fresh ID. Metrics are nil when
// no face was detected.
func NewTickRecord(now time.Time, decision quality.Decision, reason quality.Reason, m *quality.Metrics, fps float64) TickRecord {
	return TickRecord{
		ID:        uuid.NewString(),
		Timestamp: unixSeconds(now),
		Decision:  decision,
		Reason:    reason,
		Metrics:   m,
		FPS:       round(fps, 2),
	}
}

// ReasonCount is one entry of Summary.TopReasons.
type ReasonCount struct {
	Reason quality.Reason `json:"reason"`
	Count  int            `json:"count"`
}

// Summary is written once when the session closes.
type Summary struct {
	SessionID        int64                    `json:"session_id"`
	DurationS        float64                  `json:"duration_s"`
	LogRateHz        *float64                 `json:"log_rate_hz"`
	TotalLogs        int                      `json:"total_logs"`
	DecisionCounts   map[quality.Decision]int `json:"decision_counts"`
	ReasonCounts     map[quality.Reason]int   `json:"reason_counts"`
	PassRate         float64                  `json:"pass_rate"`
	FaceDetectedRate float64                  `json:"face_detected_rate"`
	AvgBrightness    *float64                 `json:"avg_brightness"`
	AvgBlur          *float64                 `json:"avg_blur"`
	TopReasons       []ReasonCount            `json:"top_reasons"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
