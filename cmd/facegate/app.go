package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facegate/internal/config"
	"github.com/teslashibe/facegate/internal/session"
	"github.com/teslashibe/facegate/pkg/advisor"
	"github.com/teslashibe/facegate/pkg/audit"
	"github.com/teslashibe/facegate/pkg/camera"
	"github.com/teslashibe/facegate/pkg/detection"
	"github.com/teslashibe/facegate/pkg/gate"
	"github.com/teslashibe/facegate/pkg/inference"
	"github.com/teslashibe/facegate/pkg/web"
)

// framePeriod paces the loop to at most 100 frames per second.
const framePeriod = 10 * time.Millisecond

// app owns every resource of one capture session.
type app struct {
	settings *config.Settings
	logger   *slog.Logger

	source   *camera.Source
	cameras  *camera.Manager
	detector detection.Detector
	provider inference.Provider
	session  *session.Session
	sink     *audit.FileSink
	server   *web.Server

	stop chan struct{}
}

func newApp(s *config.Settings, logger *slog.Logger) (*app, error) {
	a := &app{settings: s, logger: logger, stop: make(chan struct{}, 1)}

	thresholds, err := config.LoadThresholds(s.ThresholdsFile)
	if err != nil {
		return nil, err
	}

	camCfg := camera.DefaultConfig()
	if preset := camera.GetPreset(s.CameraPreset); preset != nil {
		camCfg = *preset
	} else {
		logger.Warn("unknown camera preset, using default", "preset", s.CameraPreset)
	}
	camCfg.Device = s.Camera
	a.cameras = camera.NewManager(camCfg)

	if s.VideoFile != "" {
		a.source, err = camera.OpenFile(s.VideoFile)
	} else {
		a.source, err = camera.Open(camCfg)
	}
	if err != nil {
		return nil, err
	}
	a.cameras.OnConfigChange = a.source.Apply

	detCfg := detection.DefaultConfig()
	detCfg.ModelPath = s.ModelPath
	if a.detector, err = detection.NewYuNet(detCfg); err != nil {
		a.Close()
		return nil, err
	}

	debouncerOpts := []advisor.DebouncerOption{
		advisor.WithInterval(s.AdviceInterval),
		advisor.WithDebouncerLogger(logger),
	}
	if a.provider, err = newProvider(s, logger); err != nil {
		level := slog.LevelDebug
		if s.UseLLM {
			level = slog.LevelWarn
		}
		logger.Log(context.Background(), level, "remote advice unavailable, using templates", "error", err)
	} else {
		remote := advisor.NewRemote(a.provider, advisor.WithTimeout(s.LLMTimeout), advisor.WithLogger(logger))
		debouncerOpts = append(debouncerOpts, advisor.WithRemote(remote))
	}
	debouncer := advisor.NewDebouncer(debouncerOpts...)
	debouncer.SetRemoteEnabled(remoteAtStart(s, a.provider, logger))

	start := time.Now()
	sessionID := audit.SessionID(start)
	if a.sink, err = audit.NewFileSink(filepath.Join(s.OutputDir, "logs"), sessionID); err != nil {
		a.Close()
		return nil, err
	}
	auditor := audit.New(a.sink, start, audit.WithLogEvery(s.AuditInterval), audit.WithLogger(logger))

	collector := gate.NewCollector(nil)
	engine := gate.New(auditor,
		gate.WithThresholds(thresholds),
		gate.WithDebouncer(debouncer),
		gate.WithCollector(collector),
		gate.WithLogger(logger),
	)
	a.session = session.New(engine, sessionID, s.OutputDir)

	if !s.NoWeb {
		a.server = web.NewServer(s.WebPort, a.session,
			web.WithCamera(a.cameras),
			web.WithMetrics(collector.Handler()),
			web.WithLogger(logger),
		)
		a.server.OnStop = a.requestStop
	}

	logger.Info("session started",
		"session_id", sessionID,
		"records", a.sink.RecordsPath(),
		"remote_advice", debouncer.RemoteEnabled(),
	)
	return a, nil
}

// newProvider builds the LLM provider for the configured keys. With both
// keys set the other provider becomes a fallback. LLMModel and LLMBaseURL
// apply to the selected provider only.
func newProvider(s *config.Settings, logger *slog.Logger) (inference.Provider, error) {
	optsFor := func(name, key string) []inference.Option {
		opts := []inference.Option{
			inference.WithAPIKey(key),
			inference.WithTimeout(s.LLMTimeout),
			inference.WithLogger(logger),
		}
		if name == s.LLMProvider {
			if s.LLMModel != "" {
				opts = append(opts, inference.WithModel(s.LLMModel))
			}
			if s.LLMBaseURL != "" {
				opts = append(opts, inference.WithBaseURL(s.LLMBaseURL))
			}
		}
		return opts
	}

	openai := func() (inference.Provider, error) {
		local := s.LLMProvider == config.ProviderOpenAI && s.LLMBaseURL != ""
		if s.OpenAIAPIKey == "" && !local {
			return nil, inference.ErrNoAPIKey
		}
		return inference.NewClient(optsFor(config.ProviderOpenAI, s.OpenAIAPIKey)...)
	}
	gemini := func() (inference.Provider, error) {
		return inference.NewGemini(optsFor(config.ProviderGemini, s.GeminiAPIKey)...)
	}

	order := []func() (inference.Provider, error){openai, gemini}
	if s.LLMProvider == config.ProviderGemini {
		order = []func() (inference.Provider, error){gemini, openai}
	}

	var providers []inference.Provider
	var errs []error
	for _, build := range order {
		p, err := build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		providers = append(providers, p)
	}

	switch len(providers) {
	case 0:
		return nil, errors.Join(errs...)
	case 1:
		return providers[0], nil
	default:
		return inference.NewChainWithLogger(logger, providers...)
	}
}

// remoteAtStart reports whether remote advice starts enabled. An unhealthy
// provider stays attached so the dashboard can enable it later.
func remoteAtStart(s *config.Settings, p inference.Provider, logger *slog.Logger) bool {
	if !s.UseLLM || p == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.LLMTimeout)
	defer cancel()
	if err := p.Health(ctx); err != nil {
		logger.Warn("llm provider unhealthy, starting with template advice", "error", err)
		return false
	}
	return true
}

func (a *app) requestStop() {
	select {
	case a.stop <- struct{}{}:
	default:
	}
}

// Run processes frames until ctx is done, the dashboard stops the session
// or a video file ends. The summary is printed on the way out.
func (a *app) Run(ctx context.Context) error {
	if a.server != nil {
		a.server.StartAsync()
	}

	frame := gocv.NewMat()
	defer frame.Close()
	preview := gocv.NewMat()
	defer preview.Close()

	var (
		fps  float64
		last time.Time
	)

	pace := time.NewTicker(framePeriod)
	defer pace.Stop()

	for a.next(ctx, pace.C) {
		if err := a.source.Read(&frame); err != nil {
			if a.settings.VideoFile != "" {
				a.logger.Info("video ended")
				break
			}
			continue
		}

		now := time.Now()
		if !last.IsZero() {
			if dt := now.Sub(last).Seconds(); dt > 0 {
				fps = smoothFPS(fps, 1/dt)
			}
		}
		last = now

		det, err := detection.DetectBest(a.detector, frame)
		if err != nil {
			a.logger.Warn("detection failed", "error", err)
		}

		res, err := a.session.Process(ctx, frame, det, now, fps)
		if err != nil {
			a.logger.Warn("audit write failed", "error", err)
		}
		a.logger.Debug("frame", "decision", res.Decision, "reason", res.Reason, "advice", res.Advice)

		if a.server != nil {
			a.server.PublishStatus()
			a.publishFrame(frame, &preview, det, res)
		}
	}

	return a.finish()
}

// next waits for the next frame slot. It reports false once ctx is done or
// a stop was requested.
func (a *app) next(ctx context.Context, pace <-chan time.Time) bool {
	select {
	case <-ctx.Done():
		return false
	case <-a.stop:
		return false
	case <-pace:
		return true
	}
}

// publishFrame sends an annotated preview. The retained frame used for
// captures is never drawn on.
func (a *app) publishFrame(frame gocv.Mat, preview *gocv.Mat, det *detection.Detection, res gate.Result) {
	cfg := a.cameras.GetConfig()
	if cfg.Mirror {
		gocv.Flip(frame, preview, 1)
	} else {
		frame.CopyTo(preview)
	}
	camera.DrawOverlay(preview, overlayFor(res, det, frame.Cols(), cfg.Mirror))

	data, err := camera.EncodeJPEG(*preview, cfg.Quality)
	if err != nil {
		a.logger.Debug("preview encode failed", "error", err)
		return
	}
	a.server.SendCameraFrame(data)
}

func (a *app) finish() error {
	sum, err := a.session.End(time.Now())
	if a.server != nil {
		a.server.PublishStatus()
	}

	out, encErr := json.MarshalIndent(sum, "", "  ")
	if encErr == nil {
		fmt.Fprintln(os.Stdout, string(out))
	}
	a.logger.Info("session ended",
		"records", a.sink.RecordsPath(),
		"summary", a.sink.SummaryPath(),
		"total_logs", sum.TotalLogs,
	)
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

func overlayFor(res gate.Result, det *detection.Detection, width int, mirror bool) camera.Overlay {
	o := camera.Overlay{
		Decision: string(res.Decision),
		Reason:   string(res.Reason),
		FPS:      res.FPS,
	}
	if det != nil {
		d := *det
		if mirror {
			d = d.Mirror(width)
		}
		o.Box = d.Rect()
	}
	return o
}

// smoothFPS is an exponential moving average; the first sample seeds it.
func smoothFPS(prev, sample float64) float64 {
	if prev == 0 {
		return sample
	}
	return 0.9*prev + 0.1*sample
}

// Close releases devices and stops the dashboard.
func (a *app) Close() {
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Warn("dashboard shutdown", "error", err)
		}
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.detector != nil {
		a.detector.Close()
	}
	if a.provider != nil {
		a.provider.Close()
	}
	if a.source != nil {
		a.source.Close()
	}
}
