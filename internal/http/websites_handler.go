package http

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"insightica/internal/analytics"
	"insightica/internal/websites"
)

// WebsiteIndexAction serves GET /api/website.
//
// With websiteOnly=true it returns registry rows only. Otherwise it returns
// analytics for every website of the owner, or for the single websiteId
// given. A single website that the owner does not have yields null, the
// same as one that does not exist.
func (s *Server) WebsiteIndexAction(c *fiber.Ctx) error {
	owner := ownerFrom(c)
	websiteID := c.Query("websiteId")
	ctx := c.UserContext()

	if c.Query("websiteOnly") == "true" {
		if websiteID != "" {
			w, err := s.deps.Registry.GetWebsite(ctx, websiteID, owner)
			if errors.Is(err, websites.ErrWebsiteNotFound) {
				return c.JSON(nil)
			}
			if err != nil {
				return respondError(c, err)
			}
			return c.JSON(w)
		}
		list, err := s.deps.Registry.ListWebsites(ctx, owner)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(list)
	}

	q := analytics.Query{From: c.Query("from"), To: c.Query("to")}
	if websiteID != "" {
		res, err := s.deps.Analytics.ForWebsite(ctx, owner, websiteID, q)
		if errors.Is(err, websites.ErrWebsiteNotFound) {
			return c.JSON(nil)
		}
		if err != nil {
			return s.analyticsError(c, err)
		}
		return c.JSON(res)
	}

	results, err := s.deps.Analytics.ForOwner(ctx, owner, q)
	if err != nil {
		return s.analyticsError(c, err)
	}
	return c.JSON(results)
}

func (s *Server) analyticsError(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("Failed to build analytics", slog.Any("error", err))
	}
	return c.Status(status).JSON(body)
}

// CreateWebsiteRequest is the body of POST /api/website.
type CreateWebsiteRequest struct {
	WebsiteID               string `json:"websiteId"`
	Domain                  string `json:"domain"`
	Timezone                string `json:"timezone"`
	EnableLocalHostTracking bool   `json:"enableLocalHostTracking"`
}

// WebsiteCreateAction registers a website. Registering a domain the owner
// already has returns the existing row under "data".
func (s *Server) WebsiteCreateAction(c *fiber.Ctx) error {
	var req CreateWebsiteRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(apiError{"Invalid request", "INVALID_REQUEST"})
	}

	w, err := s.deps.Registry.CreateWebsite(c.UserContext(), ownerFrom(c), websites.CreateInput{
		WebsiteID:               req.WebsiteID,
		Domain:                  req.Domain,
		Timezone:                req.Timezone,
		EnableLocalHostTracking: req.EnableLocalHostTracking,
	})
	if errors.Is(err, websites.ErrDomainExists) {
		return c.JSON(fiber.Map{"message": "Domain already exists", "data": w})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON([]*websites.Website{w})
}

type deleteWebsiteRequest struct {
	WebsiteID string `json:"websiteId"`
}

// WebsiteDeleteAction removes a website and everything recorded for it.
// The id is read from the JSON body or the websiteId query parameter.
func (s *Server) WebsiteDeleteAction(c *fiber.Ctx) error {
	var req deleteWebsiteRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(apiError{"Invalid request", "INVALID_REQUEST"})
		}
	}
	if req.WebsiteID == "" {
		req.WebsiteID = c.Query("websiteId")
	}
	if req.WebsiteID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(apiError{"websiteId is required", "INVALID_REQUEST"})
	}

	if err := s.deps.Registry.DeleteWebsite(c.UserContext(), req.WebsiteID, ownerFrom(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Website deleted successfully"})
}
