package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
}

// HealthIndexAction reports whether the service and its database are up.
func (s *Server) HealthIndexAction(c *fiber.Ctx) error {
	health := HealthStatus{Status: "ok", Timestamp: time.Now(), DBStatus: "ok"}

	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()
	if s.deps.DB == nil {
		health.DBStatus = "error"
		s.logger.Error("Database connection unavailable")
	} else if err := s.deps.DB.Ping(ctx); err != nil {
		health.DBStatus = "error"
		s.logger.Error("Database ping failed", slog.Any("error", err))
	}

	if health.DBStatus != "ok" {
		health.Status = "degraded"
		return c.Status(fiber.StatusServiceUnavailable).JSON(health)
	}
	return c.JSON(health)
}
