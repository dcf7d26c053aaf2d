package gate

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/facegate/pkg/quality"
)

// Collector exposes gate activity as Prometheus metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	ticks       *prometheus.CounterVec
	reasons     *prometheus.CounterVec
	advice      *prometheus.CounterVec
	logged      prometheus.Counter
	auditErrors prometheus.Counter
	duration    prometheus.Histogram
	brightness  prometheus.Gauge
	blur        prometheus.Gauge
}

// NewCollector registers the gate metrics. A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	const ns, sub = "facegate", "gate"
	c := &Collector{
		registry: registry,
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "ticks_total",
			Help: "Processed ticks by decision.",
		}, []string{"decision"}),
		reasons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "reasons_total",
			Help: "Non-passing ticks by reason.",
		}, []string{"reason"}),
		advice: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "advice_total",
			Help: "Advice texts by source.",
		}, []string{"source"}),
		logged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "logged_ticks_total",
			Help: "Ticks persisted to the audit trail.",
		}),
		auditErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "audit_errors_total",
			Help: "Ticks that failed to persist.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "tick_duration_seconds",
			Help:    "Time spent in ProcessTick.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.5, 2},
		}),
		brightness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "face_brightness",
			Help: "Mean gray level of the last face region.",
		}),
		blur: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "face_blur",
			Help: "Laplacian variance of the last face region.",
		}),
	}

	registry.MustRegister(
		c.ticks,
		c.reasons,
		c.advice,
		c.logged,
		c.auditErrors,
		c.duration,
		c.brightness,
		c.blur,
	)
	return c
}

// Observe records one processed tick.
func (c *Collector) Observe(res Result, took time.Duration) {
	c.ticks.WithLabelValues(string(res.Decision)).Inc()
	if res.Reason != quality.ReasonNone {
		c.reasons.WithLabelValues(string(res.Reason)).Inc()
	}
	c.advice.WithLabelValues(string(res.Source)).Inc()
	if res.Logged {
		c.logged.Inc()
	}
	if res.Metrics != nil {
		c.brightness.Set(res.Metrics.Brightness)
		c.blur.Set(res.Metrics.Blur)
	}
	c.duration.Observe(took.Seconds())
}

// AuditError counts a tick that could not be persisted.
func (c *Collector) AuditError() {
	c.auditErrors.Inc()
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
