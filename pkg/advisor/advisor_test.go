package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/facegate/pkg/inference"
	"github.com/teslashibe/facegate/pkg/quality"
)

func TestTemplate(t *testing.T) {
	for _, r := range quality.Reasons() {
		if text := Template(r); text == "" || text == FallbackMessage {
			t.Errorf("reason %q has no dedicated template", r)
		}
	}

	if got := Template("lens_cap"); got != FallbackMessage {
		t.Errorf("unknown reason: got %q, want fallback", got)
	}
	if got := Template(quality.ReasonNone); got != "" {
		t.Errorf("none: got %q, want empty", got)
	}
}

func TestLocal(t *testing.T) {
	text, err := Local{}.Advise(context.Background(), quality.ReasonBlurry, nil)
	if err != nil {
		t.Fatalf("Local.Advise: %v", err)
	}
	if text != "Hold still and clean your camera lens." {
		t.Errorf("Local.Advise: got %q", text)
	}
}

func TestRemote_UsesProvider(t *testing.T) {
	mock := inference.NewMock("  Turn on a lamp.  ")
	r := NewRemote(mock)

	m := &quality.Metrics{Brightness: 31.456, Blur: 88.04, DX: 0.01234, DY: 0.2, FaceAreaRatio: 0.15555}
	text, err := r.Advise(context.Background(), quality.ReasonLowLight, m)
	if err != nil {
		t.Fatalf("Remote.Advise: %v", err)
	}
	if text != "Turn on a lamp." {
		t.Errorf("expected trimmed text, got %q", text)
	}

	call := mock.LastCall()
	if call == nil || call.Request == nil {
		t.Fatal("provider was not called")
	}
	msgs := call.Request.Messages
	if len(msgs) != 2 || msgs[0].Role != inference.RoleSystem || msgs[0].Content != SystemPrompt {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	var payload struct {
		Issue   string        `json:"issue"`
		Metrics promptMetrics `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(msgs[1].Content), &payload); err != nil {
		t.Fatalf("user prompt is not JSON: %v", err)
	}
	if payload.Issue != "low_light" {
		t.Errorf("issue: got %q", payload.Issue)
	}
	if payload.Metrics.Brightness != 31.5 || payload.Metrics.DX != 0.012 || payload.Metrics.FaceAreaRatio != 0.156 {
		t.Errorf("metrics not rounded: %+v", payload.Metrics)
	}
}

func TestRemote_EmptyResponse(t *testing.T) {
	r := NewRemote(inference.NewMock("   "))
	if _, err := r.Advise(context.Background(), quality.ReasonTooFar, nil); !errors.Is(err, ErrEmptyAdvice) {
		t.Errorf("expected ErrEmptyAdvice, got %v", err)
	}
}

func TestRemote_Timeout(t *testing.T) {
	slow := &inference.Mock{ChatFunc: func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := NewRemote(slow, WithTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := r.Advise(context.Background(), quality.ReasonTooFar, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("remote lookup not bounded: %v", elapsed)
	}
}
