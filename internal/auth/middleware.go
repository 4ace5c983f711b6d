package auth

import (
	"github.com/gofiber/fiber/v2"

	"identity-service/internal/apperr"
	"identity-service/internal/model"
)

const principalKey = "principal"

// Middleware returns a Fiber middleware that validates the access_token
// cookie and sets the caller's Principal on the request. Any verification
// failure short-circuits with 401 before handler logic runs.
func Middleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := c.Cookies(AccessTokenCookie)
		if tokenStr == "" {
			return apperr.UnauthorizedError("Missing or invalid JWT token")
		}

		claims, err := ParseAccessToken(tokenStr, secret)
		if err != nil {
			return apperr.UnauthorizedError("Missing or invalid JWT token")
		}

		// Both identifiers are required to establish tenant identity.
		if claims.Subject == "" || claims.CompanyID == "" {
			return apperr.UnauthorizedError("Missing or invalid JWT token")
		}

		c.Locals(principalKey, &model.Principal{
			CompanyID: claims.CompanyID,
			UserID:    claims.Subject,
		})

		return c.Next()
	}
}

// GetPrincipal extracts the authenticated Principal from a Fiber context.
func GetPrincipal(c *fiber.Ctx) *model.Principal {
	p, _ := c.Locals(principalKey).(*model.Principal)
	return p
}
