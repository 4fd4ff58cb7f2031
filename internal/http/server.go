// Package http exposes ingestion, live presence and the analytics API over
// fiber.
package http

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insightica/internal/analytics"
	"insightica/internal/config"
	"insightica/internal/events"
	"insightica/internal/live"
	"insightica/internal/metrics"
	"insightica/internal/websites"
)

const ownerLocal = "owner"

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the handlers call into.
type Deps struct {
	Collector *events.Collector
	Tracker   *live.Tracker
	Registry  *websites.Registry
	Analytics *analytics.Service
	DB        Pinger
}

// Server wraps the fiber application.
type Server struct {
	app    *fiber.App
	cfg    *config.Config
	deps   Deps
	logger *slog.Logger
}

// NewServer configures middleware and routes.
func NewServer(cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	app := fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          jsonErrorHandler(logger),
	})
	s := &Server{app: app, cfg: cfg, deps: deps, logger: logger}

	app.Use(recover.New())
	app.Use(requestMetrics())
	s.routes()
	return s
}

func (s *Server) routes() {
	// The collector runs on arbitrary customer sites.
	public := cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
	})
	dashboard := cors.New(cors.Config{
		AllowOrigins: s.cfg.AllowedOrigins,
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, " + s.cfg.OwnerHeader,
	})

	s.app.Get("/health", s.HealthIndexAction)
	s.app.Head("/health", s.HealthIndexAction)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := s.app.Group("/api")
	api.Post("/track", public, s.TrackCreateAction)
	api.Options("/track", public)
	api.Post("/live", public, s.LiveCreateAction)
	api.Get("/live", public, s.LiveIndexAction)
	api.Options("/live", public)

	site := api.Group("/website", dashboard)
	site.Options("", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })
	site.Use(requireOwner(s.cfg.OwnerHeader))
	site.Get("", s.WebsiteIndexAction)
	site.Post("", s.WebsiteCreateAction)
	site.Delete("", s.WebsiteDeleteAction)
}

// App returns the fiber application, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on the configured port until Shutdown.
func (s *Server) Listen() error {
	addr := ":" + s.cfg.AppPort
	s.logger.Info("HTTP server listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// requireOwner rejects requests without the trusted owner header.
func requireOwner(header string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := c.Get(header)
		if owner == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		c.Locals(ownerLocal, owner)
		return c.Next()
	}
}

func ownerFrom(c *fiber.Ctx) string {
	owner, _ := c.Locals(ownerLocal).(string)
	return owner
}

func requestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		route := c.Route().Path
		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func jsonErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		} else {
			logger.Error("Unhandled request error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Any("error", err))
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}
