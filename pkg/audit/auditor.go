package audit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/teslashibe/facegate/pkg/quality"
)

// DefaultLogEvery is the minimum spacing between persisted ticks.
const DefaultLogEvery = time.Second

// ErrClosed is returned by an Auditor after Close.
var ErrClosed = errors.New("audit: session closed")

// Auditor is the recorder for one session. It is not safe for concurrent
// use; one goroutine owns a session.
type Auditor struct {
	sink     Sink
	logEvery time.Duration
	logger   *slog.Logger

	sessionID int64
	start     time.Time
	lastLog   time.Time
	hasLogged bool
	closed    bool

	totalLogs        int
	faceDetectedLogs int
	decisionCounts   map[quality.Decision]int
	reasonCounts     map[quality.Reason]int
	reasonOrder      []quality.Reason
	brightness       []float64
	blur             []float64
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithLogEvery overrides DefaultLogEvery. Zero logs every tick.
func WithLogEvery(d time.Duration) Option {
	return func(a *Auditor) { a.logEvery = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Auditor) { a.logger = l.With("component", "audit") }
}

// SessionID derives the session identifier from its start time.
func SessionID(start time.Time) int64 {
	return start.Unix()
}

// New starts a session at start, persisting into sink.
func New(sink Sink, start time.Time, opts ...Option) *Auditor {
	a := &Auditor{
		sink:           sink,
		logEvery:       DefaultLogEvery,
		logger:         slog.Default().With("component", "audit"),
		sessionID:      SessionID(start),
		start:          start,
		decisionCounts: make(map[quality.Decision]int),
		reasonCounts:   make(map[quality.Reason]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SessionID returns the identifier of this session.
func (a *Auditor) SessionID() int64 { return a.sessionID }

// TotalLogs returns how many ticks were persisted so far.
func (a *Auditor) TotalLogs() int { return a.totalLogs }

// RecordTick persists rec if at least LogEvery has elapsed since the last
// persisted tick. It reports whether rec was logged. A sink failure is
// returned and the tick is not counted.
func (a *Auditor) RecordTick(rec TickRecord, now time.Time) (bool, error) {
	if a.closed {
		return false, ErrClosed
	}
	if a.hasLogged && now.Sub(a.lastLog) < a.logEvery {
		return false, nil
	}

	if err := a.sink.Append(rec); err != nil {
		return false, fmt.Errorf("record tick: %w", err)
	}

	a.lastLog = now
	a.hasLogged = true
	a.totalLogs++

	if rec.Decision != "" {
		a.decisionCounts[rec.Decision]++
	}
	if rec.Reason != quality.ReasonNone {
		if _, seen := a.reasonCounts[rec.Reason]; !seen {
			a.reasonOrder = append(a.reasonOrder, rec.Reason)
		}
		a.reasonCounts[rec.Reason]++
	}
	if rec.Metrics != nil {
		a.faceDetectedLogs++
		a.brightness = append(a.brightness, rec.Metrics.Brightness)
		a.blur = append(a.blur, rec.Metrics.Blur)
	}

	return true, nil
}

// Summary computes the statistics of the session at now without closing it.
func (a *Auditor) Summary(now time.Time) Summary {
	total := max(1, a.totalLogs)

	var rate *float64
	if a.logEvery > 0 {
		hz := 1 / a.logEvery.Seconds()
		rate = &hz
	}

	decisions := make(map[quality.Decision]int, len(a.decisionCounts))
	for k, v := range a.decisionCounts {
		decisions[k] = v
	}
	reasons := make(map[quality.Reason]int, len(a.reasonCounts))
	for k, v := range a.reasonCounts {
		reasons[k] = v
	}

	return Summary{
		SessionID:        a.sessionID,
		DurationS:        round(now.Sub(a.start).Seconds(), 2),
		LogRateHz:        rate,
		TotalLogs:        a.totalLogs,
		DecisionCounts:   decisions,
		ReasonCounts:     reasons,
		PassRate:         float64(a.decisionCounts[quality.Pass]) / float64(total),
		FaceDetectedRate: float64(a.faceDetectedLogs) / float64(total),
		AvgBrightness:    mean(a.brightness),
		AvgBlur:          mean(a.blur),
		TopReasons:       a.topReasons(5),
	}
}

// Close finalizes the session: writes the summary and closes the sink.
// Later calls to RecordTick or Close return ErrClosed.
func (a *Auditor) Close(now time.Time) (Summary, error) {
	if a.closed {
		return Summary{}, ErrClosed
	}
	a.closed = true

	sum := a.Summary(now)

	var errs []error
	if err := a.sink.WriteSummary(sum); err != nil {
		errs = append(errs, err)
	}
	if err := a.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close audit sink: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return sum, err
	}

	a.logger.Info("session closed",
		"session_id", sum.SessionID,
		"total_logs", sum.TotalLogs,
		"pass_rate", sum.PassRate,
	)
	return sum, nil
}

// topReasons orders reasons by count, ties by first appearance.
func (a *Auditor) topReasons(n int) []ReasonCount {
	out := make([]ReasonCount, 0, len(a.reasonOrder))
	for _, r := range a.reasonOrder {
		out = append(out, ReasonCount{Reason: r, Count: a.reasonCounts[r]})
	}
	slices.SortStableFunc(out, func(x, y ReasonCount) int {
		return y.Count - x.Count
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	return &m
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
