package api

import (
	"github.com/gofiber/fiber/v2"

	"identity-service/internal/model"
)

// getPrincipal extracts the Principal set by the auth middleware.
func getPrincipal(c *fiber.Ctx) *model.Principal {
	p, _ := c.Locals("principal").(*model.Principal)
	return p
}

// callerToken returns the raw signed token, forwarded verbatim to the
// Guardian and Storage services.
func callerToken(c *fiber.Ctx) string {
	return c.Cookies("access_token")
}
