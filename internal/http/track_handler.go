package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"insightica/internal/events"
)

const msgDataReceived = "Data received"

// number accepts a JSON number, a numeric string or null. Browser clocks
// produce integers but some collectors send floats or strings.
type number int64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*n = number(math.Round(f))
	return nil
}

// TrackRequest is the body of POST /api/track.
type TrackRequest struct {
	Type            events.BeaconType `json:"type"`
	WebsiteID       string            `json:"websiteId"`
	Domain          string            `json:"domain"`
	URL             string            `json:"url"`
	ExitURL         string            `json:"exitUrl"`
	Referrer        string            `json:"referrer"`
	VisitorID       string            `json:"visitorId"`
	EntryTime       number            `json:"entryTime"`
	ExitTime        number            `json:"exitTime"`
	TotalActiveTime number            `json:"totalActiveTime"`
	UTMSource       string            `json:"utm_source"`
	UTMMedium       string            `json:"utm_medium"`
	UTMCampaign     string            `json:"utm_campaign"`
	RefParams       string            `json:"refParams"`
}

// TrackCreateAction records an entry or exit beacon. The exit beacon comes
// from navigator.sendBeacon, so the body is parsed regardless of its
// content type.
func (s *Server) TrackCreateAction(c *fiber.Ctx) error {
	var req TrackRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Debug("Failed to parse beacon", slog.Any("error", err))
		return c.Status(fiber.StatusBadRequest).JSON(apiError{"Invalid request", "INVALID_REQUEST"})
	}

	outcome, err := s.deps.Collector.Collect(c.UserContext(), events.Beacon{
		Type:            req.Type,
		WebsiteID:       req.WebsiteID,
		Domain:          req.Domain,
		URL:             req.URL,
		ExitURL:         req.ExitURL,
		Referrer:        req.Referrer,
		VisitorID:       req.VisitorID,
		EntryTime:       int64(req.EntryTime),
		ExitTime:        int64(req.ExitTime),
		TotalActiveTime: int64(req.TotalActiveTime),
		UTMSource:       req.UTMSource,
		UTMMedium:       req.UTMMedium,
		UTMCampaign:     req.UTMCampaign,
		RefParams:       req.RefParams,
		IPAddress:       clientIP(c),
		UserAgent:       userAgent(c),
	})
	if err != nil {
		s.logger.Debug("Beacon rejected",
			slog.String("website_id", req.WebsiteID),
			slog.String("type", string(req.Type)),
			slog.Any("error", err))
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"message": msgDataReceived, "outcome": outcome})
}

func userAgent(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-User-Agent"); forwarded != "" {
		return forwarded
	}
	return c.Get(fiber.HeaderUserAgent)
}
