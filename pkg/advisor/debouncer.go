package advisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/facegate/pkg/quality"
)

// DefaultInterval is the minimum time between fresh lookups for one reason.
const DefaultInterval = 3 * time.Second

// Source tells where an advice text came from.
type Source string

const (
	SourcePass     Source = "pass"
	SourceTemplate Source = "template"
	SourceAdvisor  Source = "advisor"
	// SourceFallback marks a fresh lookup that failed and used the template.
	SourceFallback Source = "fallback"
)

// Advice is the instruction shown for one tick.
type Advice struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
	Fresh  bool   `json:"fresh"`
}

// Debouncer holds the per-session advisory state. A fresh lookup happens
// when the reason changes or Interval has elapsed since the last lookup;
// otherwise the reason's template is repeated without touching the state.
type Debouncer struct {
	mu sync.Mutex

	remote   Advisor
	active   Advisor
	remoteOn bool
	interval time.Duration
	logger   *slog.Logger

	lastReason quality.Reason
	lastAt     time.Time
}

// DebouncerOption configures a Debouncer.
type DebouncerOption func(*Debouncer)

// WithInterval overrides DefaultInterval.
func WithInterval(d time.Duration) DebouncerOption {
	return func(db *Debouncer) { db.interval = d }
}

// WithRemote sets the network-backed advisor and makes it active.
func WithRemote(a Advisor) DebouncerOption {
	return func(db *Debouncer) {
		if a == nil {
			return
		}
		db.remote = a
		db.active = a
		db.remoteOn = true
	}
}

// WithDebouncerLogger sets the structured logger.
func WithDebouncerLogger(l *slog.Logger) DebouncerOption {
	return func(db *Debouncer) { db.logger = l.With("component", "advisor.debouncer") }
}

// NewDebouncer creates a debouncer answering from templates unless WithRemote is given.
func NewDebouncer(opts ...DebouncerOption) *Debouncer {
	d := &Debouncer{
		active:   Local{},
		interval: DefaultInterval,
		logger:   slog.Default().With("component", "advisor.debouncer"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetRemoteEnabled switches between the remote advisor and the templates.
// It is a no-op when enabling without a configured remote advisor.
func (d *Debouncer) SetRemoteEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if enabled && d.remote != nil {
		d.active = d.remote
		d.remoteOn = true
		return
	}
	d.active = Local{}
	d.remoteOn = false
}

// RemoteEnabled reports whether fresh lookups go to the remote advisor.
func (d *Debouncer) RemoteEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remoteOn
}

// Advise returns the instruction for reason at time now.
func (d *Debouncer) Advise(ctx context.Context, reason quality.Reason, m *quality.Metrics, now time.Time) Advice {
	if reason == quality.ReasonNone {
		return Advice{Text: PassMessage, Source: SourcePass}
	}

	d.mu.Lock()
	fresh := reason != d.lastReason || now.Sub(d.lastAt) >= d.interval
	active := d.active
	if fresh {
		d.lastReason = reason
		d.lastAt = now
	}
	d.mu.Unlock()

	if !fresh {
		return Advice{Text: Template(reason), Source: SourceTemplate}
	}

	text, err := active.Advise(ctx, reason, m)
	if err != nil || text == "" {
		d.logger.Warn("advice lookup failed, using template", "reason", reason, "error", err)
		return Advice{Text: Template(reason), Source: SourceFallback, Fresh: true}
	}

	return Advice{Text: text, Source: SourceAdvisor, Fresh: true}
}

// State returns the last reason and the time of its fresh lookup.
func (d *Debouncer) State() (quality.Reason, time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastReason, d.lastAt
}
