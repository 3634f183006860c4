// Package web provides a local monitor dashboard for a running voice
// session: current state, live transcript, and per-turn latency metrics,
// served over REST with websocket push for live updates.
package web

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/gsSaber/ztalk/pkg/hub"
	"github.com/gsSaber/ztalk/pkg/session"
)

// Server is the monitor dashboard server. It observes one session and
// never mutates it.
type Server struct {
	app    *fiber.App
	addr   string
	sess   *session.Session
	logger *slog.Logger

	stateHub      *hub.Hub
	transcriptHub *hub.Hub
	metricsHub    *hub.Hub
}

// NewServer creates a monitor bound to addr observing sess. The monitor
// claims the session's state, transcript, and metrics hooks.
func NewServer(addr string, sess *session.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		addr:          addr,
		sess:          sess,
		logger:        logger.With("component", "monitor"),
		stateHub:      hub.New("state", logger),
		transcriptHub: hub.New("transcript", logger),
		metricsHub:    hub.New("metrics", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "ztalk monitor",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/state", s.handleState)
	api.Get("/transcript", s.handleTranscript)
	api.Get("/metrics", s.handleMetrics)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/state", websocket.New(s.handleStateWS))
	app.Get("/ws/transcript", websocket.New(s.handleTranscriptWS))
	app.Get("/ws/metrics", websocket.New(s.handleMetricsWS))

	s.app = app
	s.observe()
	return s
}

// observe wires the session hooks into the broadcast hubs.
func (s *Server) observe() {
	s.sess.OnStateChange(func(old, new session.State) {
		_ = s.stateHub.BroadcastJSON(stateUpdate{
			From: old.String(),
			To:   new.String(),
		})
	})

	s.sess.OnTranscript(func(entry session.Entry) {
		_ = s.transcriptHub.BroadcastJSON(entry)
	})

	s.sess.Metrics().OnUpdate(func(m session.TurnMetrics) {
		_ = s.metricsHub.BroadcastJSON(m)
	})
}

// stateUpdate is one state transition pushed to observers.
type stateUpdate struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Start runs the hubs and serves until Shutdown. It blocks.
func (s *Server) Start() error {
	go s.stateHub.Run()
	go s.transcriptHub.Run()
	go s.metricsHub.Run()

	s.logger.Info("monitor listening", "addr", s.addr)
	return s.app.Listen(s.addr)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("monitor server failed", "error", err)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
