// Package advisor maps gate reasons to one short corrective instruction and
// throttles how often a fresh instruction is generated for the same reason.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/teslashibe/facegate/pkg/inference"
	"github.com/teslashibe/facegate/pkg/quality"
)

// PassMessage is shown whenever the gate passes.
const PassMessage = "Looks good. You can capture now."

// FallbackMessage is used for reasons without a template.
const FallbackMessage = "Adjust your camera setup and try again."

var templates = map[quality.Reason]string{
	quality.ReasonNoFace:        "Show your face clearly in the frame.",
	quality.ReasonLowConfidence: "Improve lighting and face the camera.",
	quality.ReasonTooFar:        "Move closer to the camera.",
	quality.ReasonTooClose:      "Move a little farther from the camera.",
	quality.ReasonOffCenter:     "Center your face in the frame.",
	quality.ReasonLowLight:      "Increase lighting or face a window.",
	quality.ReasonTooBright:     "Reduce glare; avoid strong backlight.",
	quality.ReasonBlurry:        "Hold still and clean your camera lens.",
}

// Template returns the local instruction for reason. None maps to "".
func Template(reason quality.Reason) string {
	if reason == quality.ReasonNone {
		return ""
	}
	if text, ok := templates[reason]; ok {
		return text
	}
	return FallbackMessage
}

// ErrEmptyAdvice is returned when a remote source produces no usable text.
var ErrEmptyAdvice = errors.New("advisor: empty advice")

// Advisor produces an instruction for a reason. Metrics are nil for no_face.
type Advisor interface {
	Advise(ctx context.Context, reason quality.Reason, m *quality.Metrics) (string, error)
}

// Local answers from the fixed templates and never fails.
type Local struct{}

// Advise returns the template for reason.
func (Local) Advise(_ context.Context, reason quality.Reason, _ *quality.Metrics) (string, error) {
	return Template(reason), nil
}

// SystemPrompt constrains the remote model to short, identity-free instructions.
const SystemPrompt = "You are a camera setup assistant for identity verification. " +
	"Give one short actionable instruction. " +
	"Do not infer identity or demographics. " +
	"Max 12 words."

// DefaultRemoteTimeout bounds one remote lookup.
const DefaultRemoteTimeout = 2 * time.Second

// Remote asks a text generation provider for the instruction.
type Remote struct {
	provider inference.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// RemoteOption configures a Remote advisor.
type RemoteOption func(*Remote)

// WithTimeout bounds each lookup. Non-positive values keep the default.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *Remote) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) RemoteOption {
	return func(r *Remote) { r.logger = l.With("component", "advisor.remote") }
}

// NewRemote wraps provider. Each lookup is one provider call; the debouncer
// never retries inside a tick.
func NewRemote(provider inference.Provider, opts ...RemoteOption) *Remote {
	r := &Remote{
		provider: provider,
		timeout:  DefaultRemoteTimeout,
		logger:   slog.Default().With("component", "advisor.remote"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Advise performs one bounded chat call.
func (r *Remote) Advise(ctx context.Context, reason quality.Reason, m *quality.Metrics) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	prompt, err := userPrompt(reason, m)
	if err != nil {
		return "", err
	}

	resp, err := r.provider.Chat(ctx, &inference.ChatRequest{
		Messages: []inference.Message{
			inference.NewSystemMessage(SystemPrompt),
			inference.NewUserMessage(prompt),
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("remote advice for %s: %w", reason, err)
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", ErrEmptyAdvice
	}

	r.logger.Debug("remote advice", "reason", reason, "latency_ms", resp.LatencyMs)
	return text, nil
}

type promptMetrics struct {
	Brightness    float64 `json:"brightness"`
	Blur          float64 `json:"blur"`
	DX            float64 `json:"dx"`
	DY            float64 `json:"dy"`
	FaceAreaRatio float64 `json:"face_area_ratio"`
}

func userPrompt(reason quality.Reason, m *quality.Metrics) (string, error) {
	var pm promptMetrics
	if m != nil {
		pm = promptMetrics{
			Brightness:    round(m.Brightness, 1),
			Blur:          round(m.Blur, 1),
			DX:            round(m.DX, 3),
			DY:            round(m.DY, 3),
			FaceAreaRatio: round(m.FaceAreaRatio, 3),
		}
	}

	b, err := json.Marshal(struct {
		Issue   quality.Reason `json:"issue"`
		Metrics promptMetrics  `json:"metrics"`
	}{reason, pm})
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}
	return string(b), nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Verify implementations at compile time.
var (
	_ Advisor = Local{}
	_ Advisor = (*Remote)(nil)
)
