package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"insightica/internal/events"
	"insightica/internal/live"
	"insightica/internal/timeframe"
	"insightica/internal/websites"
)

// apiError is the JSON body of every failed API call.
type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps domain errors to a status and a stable error code.
// Unrecognized errors are internal.
func classify(err error) (int, apiError) {
	switch {
	case errors.Is(err, websites.ErrWebsiteNotFound):
		return fiber.StatusNotFound, apiError{"Website not found", "WEBSITE_NOT_FOUND"}
	case errors.Is(err, websites.ErrMissingOwner):
		return fiber.StatusUnauthorized, apiError{"Unauthorized", "UNAUTHORIZED"}
	case errors.Is(err, websites.ErrInvalidDomain),
		errors.Is(err, websites.ErrInvalidID):
		return fiber.StatusBadRequest, apiError{err.Error(), "INVALID_WEBSITE"}
	case errors.Is(err, websites.ErrWebsiteIDTaken):
		return fiber.StatusConflict, apiError{err.Error(), "WEBSITE_ID_TAKEN"}
	case errors.Is(err, timeframe.ErrInvalidDate),
		errors.Is(err, timeframe.ErrInvertedDate):
		return fiber.StatusBadRequest, apiError{err.Error(), "INVALID_DATE"}
	case errors.Is(err, events.ErrMissingVisitor),
		errors.Is(err, events.ErrMissingWebsite),
		errors.Is(err, events.ErrUnknownBeacon),
		errors.Is(err, live.ErrMissingVisitor),
		errors.Is(err, live.ErrMissingWebsite):
		return fiber.StatusBadRequest, apiError{err.Error(), "INVALID_REQUEST"}
	default:
		return fiber.StatusInternalServerError, apiError{"Internal server error", "INTERNAL_ERROR"}
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status, body := classify(err)
	return c.Status(status).JSON(body)
}
