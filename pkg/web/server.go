// Package web provides a real-time dashboard for the rover
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/roverlabs/go-rover/pkg/hub"
)

// Snapshot is the dashboard view of the firmware state.
type Snapshot struct {
	Ready          bool    `json:"ready"`
	EmergencyStop  bool    `json:"emergency_stop"`
	Debug          bool    `json:"debug"`
	UptimeSeconds  int     `json:"uptime_seconds"`
	LoopHz         int     `json:"loop_hz"`
	GlobalSpeed    int     `json:"global_speed"`
	Wheels         [4]int  `json:"wheels"`
	Servos         [6]int  `json:"servos"`
	FrontDistance  float64 `json:"front_distance_cm"`
	RearDistance   float64 `json:"rear_distance_cm"`
	SensorsEnabled bool    `json:"sensors_enabled"`
	CollisionLevel string  `json:"collision_level"`
	Aggressiveness int     `json:"aggressiveness"`
}

// Server is the web dashboard server
type Server struct {
	app  *fiber.App
	addr string
	log  *slog.Logger

	// Hub for websocket line broadcast (thread-safe!)
	hub *hub.Hub

	// Snapshot callback, provided by the control loop
	OnSnapshot func() Snapshot
}

// NewServer creates a new web dashboard server. Outbound lines broadcast
// through the given hub; lines posted by dashboard clients feed back
// through it as commands.
func NewServer(addr string, lineHub *hub.Hub, log *slog.Logger) *Server {
	s := &Server{
		addr: addr,
		log:  log,
		hub:  lineHub,
	}

	app := fiber.New(fiber.Config{
		AppName:               "Rover Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// Static files
	app.Static("/", "./web")

	app.Get("/healthz", s.handleHealth)

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/command", s.handleCommand)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s
}

// Start starts the web server and blocks.
func (s *Server) Start() error {
	s.log.Info("web dashboard listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the web server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.log.Error("web server failed", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
