// Package web serves the operator dashboard API: gate status, captures,
// the remote advice toggle, Prometheus metrics and live websocket feeds.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/facegate/internal/session"
	"github.com/teslashibe/facegate/pkg/audit"
	"github.com/teslashibe/facegate/pkg/camera"
	"github.com/teslashibe/facegate/pkg/hub"
)

// Session is what the dashboard needs from the running capture session.
type Session interface {
	Status() session.Status
	Summary() *audit.Summary
	Capture(now time.Time) (string, error)
	SetRemoteAdvice(enabled bool) bool
}

// Server is the web dashboard server
type Server struct {
	app    *fiber.App
	port   string
	logger *slog.Logger

	session Session
	camera  *camera.Manager

	statusHub *hub.Hub
	cameraHub *hub.Hub

	// OnStop is called when the operator ends the session from the dashboard.
	OnStop func()

	now func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithCamera exposes the camera settings endpoints.
func WithCamera(m *camera.Manager) Option {
	return func(s *Server) { s.camera = m }
}

// WithMetrics mounts a Prometheus handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.app.Get("/metrics", adaptor.HTTPHandler(h))
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l.With("component", "web") }
}

// NewServer creates a dashboard server for sess.
func NewServer(port string, sess Session, opts ...Option) *Server {
	s := &Server{
		port:    port,
		logger:  slog.Default().With("component", "web"),
		session: sess,
		now:     time.Now,
	}

	app := fiber.New(fiber.Config{
		AppName:               "facegate",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	s.app = app

	for _, opt := range opts {
		opt(s)
	}
	s.statusHub = hub.New("status", s.logger)
	s.cameraHub = hub.New("camera", s.logger)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/summary", s.handleSummary)
	api.Post("/capture", s.handleCapture)
	api.Post("/advice/remote", s.handleRemoteAdvice)
	api.Post("/session/stop", s.handleStop)
	if s.camera != nil {
		api.Get("/camera", s.handleGetCamera)
		api.Post("/camera", s.handleUpdateCamera)
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/camera", websocket.New(s.handleCameraWS))

	return s
}

// App returns the fiber application, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start runs the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "url", "http://localhost:"+s.port)

	go s.statusHub.Run()
	go s.cameraHub.Run()

	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server stopped", "error", err)
		}
	}()
}

// PublishStatus pushes the current session status to status subscribers.
func (s *Server) PublishStatus() {
	if err := s.statusHub.BroadcastJSON(s.session.Status()); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
}

// SendCameraFrame sends a JPEG preview frame to camera subscribers.
func (s *Server) SendCameraFrame(jpegData []byte) {
	s.cameraHub.BroadcastBinary(jpegData)
}

// Shutdown stops the hubs and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.statusHub.Stop()
	s.cameraHub.Stop()
	return s.app.ShutdownWithContext(ctx)
}
