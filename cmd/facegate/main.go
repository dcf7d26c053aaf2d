// facegate - live quality gate for ID-verification selfie capture.
//
// Reads the webcam, scores the detected face every frame, shows
// instructions on the dashboard and only allows a capture on PASS.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/facegate/internal/config"
	ilog "github.com/teslashibe/facegate/internal/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup always happens
// before exit.
func run(args []string) int {
	settings, err := config.Load()
	if err != nil {
		log.Printf("configuration error: %v", err)
		return 2
	}
	if err := parseFlags(settings, args); err != nil {
		return 2
	}

	ilog.Init(settings.LogLevel)
	logger := ilog.L()

	app, err := newApp(settings, logger)
	if err != nil {
		logger.Error("initialization failed", "error", err)
		return 1
	}
	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Error("session failed", "error", err)
		return 1
	}
	return 0
}

// parseFlags lets command line flags override the environment.
func parseFlags(s *config.Settings, args []string) error {
	fs := flag.NewFlagSet("facegate", flag.ContinueOnError)
	camera := fs.Int("camera", s.Camera, "Camera device index")
	video := fs.String("video", s.VideoFile, "Replay a video file instead of a camera")
	out := fs.String("out", s.OutputDir, "Output directory for logs and captures")
	thresholds := fs.String("thresholds", s.ThresholdsFile, "YAML thresholds file")
	port := fs.String("port", s.WebPort, "Dashboard port")
	noWeb := fs.Bool("no-web", s.NoWeb, "Disable the dashboard")
	useLLM := fs.Bool("llm", s.UseLLM, "Use an LLM for advice text")
	debug := fs.Bool("debug", false, "Enable verbose debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s.Camera, s.OutputDir, s.ThresholdsFile = *camera, *out, *thresholds
	s.WebPort, s.NoWeb, s.UseLLM = *port, *noWeb, *useLLM
	s.VideoFile = *video
	if *debug {
		s.LogLevel = "debug"
	}
	return nil
}
