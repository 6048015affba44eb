package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/energy-sentinel/internal/adapter/http/fiber/middleware"
	"github.com/seu-repo/energy-sentinel/internal/domain"
)

func callerID(c *fiber.Ctx) (string, error) {
	caller, ok := middleware.CallerFrom(c)
	if !ok || caller.UserID == "" {
		return "", fiber.ErrUnauthorized
	}
	return caller.UserID, nil
}

// parseWindow reads durations like "24h" or "168h". Empty means default.
func parseWindow(field, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, domain.NewValidationError(field, "must be a positive duration such as 24h")
	}
	return d, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if len(c.Body()) == 0 {
		return nil
	}
	if err := c.BodyParser(out); err != nil {
		return domain.NewValidationError("body", "invalid JSON body")
	}
	return nil
}
