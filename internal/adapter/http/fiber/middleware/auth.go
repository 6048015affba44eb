package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/seu-repo/energy-sentinel/internal/domain"
	"github.com/seu-repo/energy-sentinel/internal/ports"
	"github.com/seu-repo/energy-sentinel/internal/service/auth"
)

const callerKey = "caller"

// AuthRequired validates the bearer token and stores the caller in Locals.
func AuthRequired(validator ports.TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing authorization header"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid authorization header format"})
		}

		caller, err := validator.ValidateToken(c.UserContext(), parts[1])
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals(callerKey, caller)
		return c.Next()
	}
}

// CallerFrom returns the caller AuthRequired stored on the request.
func CallerFrom(c *fiber.Ctx) (*domain.Caller, bool) {
	caller, ok := c.Locals(callerKey).(*domain.Caller)
	return caller, ok
}

// RequirePermission rejects callers whose role lacks resource:action.
func RequirePermission(rbac *auth.RBACService, resource, action string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := CallerFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Not authenticated"})
		}
		if !rbac.CheckPermission(caller.Role, resource, action) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Insufficient permissions"})
		}
		return c.Next()
	}
}
