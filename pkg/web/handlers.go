package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/roverlabs/go-rover/pkg/hub"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

// handleStatus returns the current firmware snapshot
func (s *Server) handleStatus(c *fiber.Ctx) error {
	if s.OnSnapshot == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "snapshot not configured",
		})
	}
	return c.JSON(s.OnSnapshot())
}

// CommandRequest is the request body for submitting a command line
type CommandRequest struct {
	Line string `json:"line"`
}

// handleCommand feeds one command line into the firmware. The response
// arrives on the websocket stream, not here.
func (s *Server) handleCommand(c *fiber.Ctx) error {
	var req CommandRequest
	if err := c.BodyParser(&req); err != nil || req.Line == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "body must be {\"line\": \"COMMAND\"}",
		})
	}
	s.hub.Receive(req.Line)
	return c.JSON(fiber.Map{"queued": req.Line})
}

// handleWS upgrades a dashboard client onto the line stream.
func (s *Server) handleWS(conn *websocket.Conn) {
	client := hub.NewClient(s.hub, conn)
	client.Run()
}
