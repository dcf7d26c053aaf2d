// Package gate runs the per-frame quality gate: metrics, rule evaluation,
// debounced advice and the session audit trail.
package gate

import (
	"context"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facegate/pkg/advisor"
	"github.com/teslashibe/facegate/pkg/audit"
	"github.com/teslashibe/facegate/pkg/detection"
	"github.com/teslashibe/facegate/pkg/quality"
)

// Tick is one frame's worth of input.
type Tick struct {
	Frame     *gocv.Mat
	Detection *detection.Detection
	Now       time.Time
	FPS       float64

	// Width and Height are used when Frame is nil or empty; only geometric
	// metrics are computed then.
	Width  int
	Height int
}

// Result is the gate outcome for one tick.
type Result struct {
	Decision quality.Decision `json:"decision"`
	Reason   quality.Reason   `json:"reason"`
	Metrics  *quality.Metrics `json:"metrics"`
	Advice   string           `json:"advice"`
	Source   advisor.Source   `json:"advice_source"`
	Logged   bool             `json:"logged"`
	FPS      float64          `json:"fps"`
}

// Engine is not safe for concurrent use; one goroutine drives a session.
type Engine struct {
	thresholds quality.Thresholds
	debouncer  *advisor.Debouncer
	auditor    *audit.Auditor
	collector  *Collector
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds overrides quality.DefaultThresholds.
func WithThresholds(t quality.Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithDebouncer sets the advice debouncer. The default is local-only.
func WithDebouncer(d *advisor.Debouncer) Option {
	return func(e *Engine) { e.debouncer = d }
}

// WithCollector enables Prometheus instrumentation.
func WithCollector(c *Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l.With("component", "gate") }
}

// New creates an engine that records into auditor.
func New(auditor *audit.Auditor, opts ...Option) *Engine {
	e := &Engine{
		thresholds: quality.DefaultThresholds(),
		auditor:    auditor,
		logger:     slog.Default().With("component", "gate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.debouncer == nil {
		e.debouncer = advisor.NewDebouncer()
	}
	return e
}

// Thresholds returns the active thresholds.
func (e *Engine) Thresholds() quality.Thresholds { return e.thresholds }

// SetRemoteEnabled toggles remote advice for subsequent ticks.
func (e *Engine) SetRemoteEnabled(enabled bool) {
	e.debouncer.SetRemoteEnabled(enabled)
}

// RemoteEnabled reports whether remote advice is active.
func (e *Engine) RemoteEnabled() bool {
	return e.debouncer.RemoteEnabled()
}

// ProcessTick evaluates one tick. The returned Result is always complete;
// a non-nil error means only that the tick could not be persisted.
func (e *Engine) ProcessTick(ctx context.Context, t Tick) (Result, error) {
	began := time.Now()

	var (
		decision quality.Decision
		reason   quality.Reason
		metrics  *quality.Metrics
	)

	if t.Detection == nil {
		decision, reason = quality.NoFace()
	} else {
		m := e.extract(t)
		metrics = &m
		decision, reason = quality.Evaluate(m, e.thresholds)
	}

	adv := e.debouncer.Advise(ctx, reason, metrics, t.Now)

	res := Result{
		Decision: decision,
		Reason:   reason,
		Metrics:  metrics,
		Advice:   adv.Text,
		Source:   adv.Source,
		FPS:      t.FPS,
	}

	logged, err := e.auditor.RecordTick(audit.NewTickRecord(t.Now, decision, reason, metrics, t.FPS), t.Now)
	res.Logged = logged

	e.logger.Debug("tick",
		"decision", decision,
		"reason", reason,
		"advice_source", adv.Source,
		"logged", logged,
	)
	if e.collector != nil {
		e.collector.Observe(res, time.Since(began))
		if err != nil {
			e.collector.AuditError()
		}
	}

	return res, err
}

func (e *Engine) extract(t Tick) quality.Metrics {
	r := t.Detection.Region()
	if t.Frame == nil || t.Frame.Empty() {
		m, _ := quality.ExtractGeometry(t.Width, t.Height, r, t.Detection.Confidence)
		return m
	}
	return quality.Extract(*t.Frame, r, t.Detection.Confidence)
}

// EndSession closes the audit trail and returns the session summary.
func (e *Engine) EndSession(now time.Time) (audit.Summary, error) {
	return e.auditor.Close(now)
}
