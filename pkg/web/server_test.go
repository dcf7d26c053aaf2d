package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/facegate/internal/session"
	"github.com/teslashibe/facegate/pkg/audit"
	"github.com/teslashibe/facegate/pkg/camera"
	"github.com/teslashibe/facegate/pkg/gate"
	"github.com/teslashibe/facegate/pkg/quality"
)

type fakeSession struct {
	status     session.Status
	summary    *audit.Summary
	captureErr error
	remote     bool
	hasRemote  bool
	captures   []time.Time
}

func (f *fakeSession) Status() session.Status  { return f.status }
func (f *fakeSession) Summary() *audit.Summary { return f.summary }

func (f *fakeSession) Capture(now time.Time) (string, error) {
	if f.captureErr != nil {
		return "", f.captureErr
	}
	f.captures = append(f.captures, now)
	return "out/captures/capture_1.jpg", nil
}

func (f *fakeSession) SetRemoteAdvice(enabled bool) bool {
	f.remote = enabled && f.hasRemote
	return f.remote
}

func do(t *testing.T, s *Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(data) > 0 {
		json.Unmarshal(data, &out)
	}
	return resp.StatusCode, out
}

func TestStatus(t *testing.T) {
	res := gate.Result{Decision: quality.NeedsFixing, Reason: quality.ReasonLowLight, Advice: "More light."}
	sess := &fakeSession{status: session.Status{SessionID: 42, Result: &res}}
	s := NewServer("0", sess)

	code, body := do(t, s, http.MethodGet, "/api/status", "")
	if code != http.StatusOK {
		t.Fatalf("status code %d", code)
	}
	result, _ := body["result"].(map[string]any)
	if body["session_id"] != float64(42) || result["reason"] != "low_light" || result["advice"] != "More light." {
		t.Errorf("body: %v", body)
	}
}

func TestSummary(t *testing.T) {
	sess := &fakeSession{}
	s := NewServer("0", sess)

	if code, _ := do(t, s, http.MethodGet, "/api/summary", ""); code != http.StatusNotFound {
		t.Errorf("running session: got %d, want 404", code)
	}

	sess.summary = &audit.Summary{SessionID: 42, TotalLogs: 7, TopReasons: []audit.ReasonCount{}}
	code, body := do(t, s, http.MethodGet, "/api/summary", "")
	if code != http.StatusOK || body["total_logs"] != float64(7) {
		t.Errorf("ended session: %d %v", code, body)
	}
	if _, ok := body["avg_brightness"]; !ok {
		t.Error("avg_brightness should be present as null")
	}
}

func TestCapture(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "pass", wantCode: http.StatusOK},
		{name: "not pass", err: session.ErrCaptureDisabled, wantCode: http.StatusConflict, wantErr: CaptureDisabledMessage},
		{name: "ended", err: session.ErrEnded, wantCode: http.StatusGone},
		{name: "disk", err: errors.New("disk full"), wantCode: http.StatusInternalServerError, wantErr: "disk full"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{captureErr: tt.err}
			s := NewServer("0", sess)
			fixed := time.Unix(1760000000, 0)
			s.now = func() time.Time { return fixed }

			code, body := do(t, s, http.MethodPost, "/api/capture", "")
			if code != tt.wantCode {
				t.Fatalf("code: got %d, want %d", code, tt.wantCode)
			}
			if tt.wantErr != "" && body["error"] != tt.wantErr {
				t.Errorf("error: got %v, want %q", body["error"], tt.wantErr)
			}
			if tt.err == nil {
				if body["path"] == "" || len(sess.captures) != 1 || !sess.captures[0].Equal(fixed) {
					t.Errorf("capture not performed: %v %v", body, sess.captures)
				}
			}
		})
	}
}

func TestRemoteAdvice(t *testing.T) {
	sess := &fakeSession{hasRemote: true}
	s := NewServer("0", sess)

	code, body := do(t, s, http.MethodPost, "/api/advice/remote", `{"enabled": true}`)
	if code != http.StatusOK || body["enabled"] != true || !sess.remote {
		t.Errorf("enable: %d %v", code, body)
	}

	code, body = do(t, s, http.MethodPost, "/api/advice/remote", `{"enabled": false}`)
	if code != http.StatusOK || body["enabled"] != false || sess.remote {
		t.Errorf("disable: %d %v", code, body)
	}

	if code, _ := do(t, s, http.MethodPost, "/api/advice/remote", `{}`); code != http.StatusBadRequest {
		t.Errorf("missing field: got %d", code)
	}
}

func TestRemoteAdvice_Unavailable(t *testing.T) {
	s := NewServer("0", &fakeSession{})
	_, body := do(t, s, http.MethodPost, "/api/advice/remote", `{"enabled": true}`)
	if body["enabled"] != false {
		t.Errorf("without a remote advisor: %v", body)
	}
}

func TestStop(t *testing.T) {
	s := NewServer("0", &fakeSession{})
	if code, _ := do(t, s, http.MethodPost, "/api/session/stop", ""); code != http.StatusServiceUnavailable {
		t.Errorf("unconfigured stop: got %d", code)
	}

	stopped := 0
	s.OnStop = func() { stopped++ }
	if code, _ := do(t, s, http.MethodPost, "/api/session/stop", ""); code != http.StatusAccepted || stopped != 1 {
		t.Errorf("stop: code %d, calls %d", code, stopped)
	}
}

func TestCameraSettings(t *testing.T) {
	mgr := camera.NewManager(camera.DefaultConfig())
	s := NewServer("0", &fakeSession{}, WithCamera(mgr))

	code, body := do(t, s, http.MethodGet, "/api/camera", "")
	cfg, _ := body["config"].(map[string]any)
	if code != http.StatusOK || cfg["width"] != float64(640) {
		t.Errorf("get: %d %v", code, body)
	}
	presets, _ := body["presets"].([]any)
	if len(presets) != len(camera.PresetNames()) || presets[0] != camera.PresetDefault {
		t.Errorf("presets: %v", body["presets"])
	}

	code, body = do(t, s, http.MethodPost, "/api/camera", `{"preset": "720p"}`)
	if code != http.StatusOK || body["width"] != float64(1280) {
		t.Errorf("preset: %d %v", code, body)
	}

	if code, _ := do(t, s, http.MethodPost, "/api/camera", `{"width": 10}`); code != http.StatusBadRequest {
		t.Errorf("invalid width: got %d", code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	hits := prometheus.NewCounter(prometheus.CounterOpts{Name: "facegate_test_hits_total", Help: "test"})
	reg.MustRegister(hits)
	hits.Add(3)

	s := NewServer("0", &fakeSession{}, WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "facegate_test_hits_total 3") {
		t.Errorf("metrics body:\n%s", data)
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := NewServer("0", &fakeSession{})
	if code, _ := do(t, s, http.MethodGet, "/ws/status", ""); code != http.StatusUpgradeRequired {
		t.Errorf("plain GET on websocket route: got %d", code)
	}
}
