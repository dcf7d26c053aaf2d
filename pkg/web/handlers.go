package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/facegate/internal/session"
	"github.com/teslashibe/facegate/pkg/camera"
	"github.com/teslashibe/facegate/pkg/hub"
)

// CaptureDisabledMessage is shown when a capture is requested without PASS.
const CaptureDisabledMessage = "Capture disabled: need PASS."

// handleStatus returns the latest gate result
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.session.Status())
}

// handleSummary returns the session summary once the session has ended
func (s *Server) handleSummary(c *fiber.Ctx) error {
	sum := s.session.Summary()
	if sum == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "session still running",
		})
	}
	return c.JSON(sum)
}

// handleCapture saves the latest frame if it passed the gate
func (s *Server) handleCapture(c *fiber.Ctx) error {
	path, err := s.session.Capture(s.now())
	switch {
	case errors.Is(err, session.ErrCaptureDisabled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": CaptureDisabledMessage,
		})
	case errors.Is(err, session.ErrEnded):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": err.Error(),
		})
	case err != nil:
		s.logger.Error("capture failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.logger.Info("capture saved", "path", path)
	return c.JSON(fiber.Map{"path": path})
}

// RemoteAdviceRequest is the body of POST /api/advice/remote.
type RemoteAdviceRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleRemoteAdvice toggles LLM advice
func (s *Server) handleRemoteAdvice(c *fiber.Ctx) error {
	var req RemoteAdviceRequest
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `expected {"enabled": true|false}`,
		})
	}

	enabled := s.session.SetRemoteAdvice(*req.Enabled)
	s.logger.Info("remote advice toggled", "requested", *req.Enabled, "enabled", enabled)
	s.PublishStatus()
	return c.JSON(fiber.Map{"enabled": enabled})
}

// handleStop ends the session
func (s *Server) handleStop(c *fiber.Ctx) error {
	if s.OnStop == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "stop not configured",
		})
	}
	s.OnStop()
	return c.SendStatus(fiber.StatusAccepted)
}

// handleGetCamera returns the camera settings and the preset names
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"config":  s.camera.GetConfig(),
		"presets": camera.PresetNames(),
	})
}

// handleUpdateCamera applies a partial camera settings update
func (s *Server) handleUpdateCamera(c *fiber.Ctx) error {
	var params map[string]any
	if err := c.BodyParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}
	if err := s.camera.UpdateConfig(params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.camera.GetConfig())
}

// handleStatusWS streams status updates, starting with the current one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(s.session.Status()); err != nil {
		return
	}
	if client := hub.NewClient(s.statusHub, c); client != nil {
		client.Run()
	}
}

// handleCameraWS streams JPEG preview frames
func (s *Server) handleCameraWS(c *websocket.Conn) {
	if client := hub.NewClient(s.cameraHub, c); client != nil {
		client.Run()
	}
}
