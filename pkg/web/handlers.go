package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/gsSaber/ztalk/pkg/hub"
)

// handleState returns the full session snapshot.
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.sess.Snapshot())
}

// handleTranscript returns the conversation log.
func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.sess.Transcript())
}

// handleMetrics returns the current and average turn latencies.
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"current": s.sess.Metrics().Current(),
		"average": s.sess.Metrics().Average(),
	})
}

// handleStateWS streams state transitions. The current snapshot is sent
// first so late joiners start consistent.
func (s *Server) handleStateWS(c *websocket.Conn) {
	_ = c.WriteJSON(s.sess.Snapshot())
	hub.NewClient(s.stateHub, c).Run()
}

// handleTranscriptWS streams transcript updates, preceded by the log so
// far.
func (s *Server) handleTranscriptWS(c *websocket.Conn) {
	for _, entry := range s.sess.Transcript() {
		_ = c.WriteJSON(entry)
	}
	hub.NewClient(s.transcriptHub, c).Run()
}

// handleMetricsWS streams latency updates.
func (s *Server) handleMetricsWS(c *websocket.Conn) {
	_ = c.WriteJSON(s.sess.Metrics().Current())
	hub.NewClient(s.metricsHub, c).Run()
}
