package http

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"insightica/internal/live"
)

// HeartbeatRequest is the body of POST /api/live.
type HeartbeatRequest struct {
	WebsiteID string `json:"websiteId"`
	VisitorID string `json:"visitorId"`
	LastSeen  number `json:"last_seen"`
	URL       string `json:"url"`
}

// LiveCreateAction records a heartbeat.
func (s *Server) LiveCreateAction(c *fiber.Ctx) error {
	var req HeartbeatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(apiError{"Invalid request", "INVALID_REQUEST"})
	}

	_, err := s.deps.Tracker.RecordHeartbeat(c.UserContext(), live.Heartbeat{
		WebsiteID: req.WebsiteID,
		VisitorID: req.VisitorID,
		URL:       req.URL,
		LastSeen:  int64(req.LastSeen),
		IPAddress: clientIP(c),
		UserAgent: userAgent(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": msgDataReceived})
}

// LiveIndexAction lists the visitors currently on a website. A missing
// websiteId yields 400 with an empty list.
func (s *Server) LiveIndexAction(c *fiber.Ctx) error {
	websiteID := c.Query("websiteId")
	if websiteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON([]live.Presence{})
	}

	active, err := s.deps.Tracker.ListActive(c.UserContext(), websiteID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(active)
}
