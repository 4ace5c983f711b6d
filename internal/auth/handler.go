package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"identity-service/internal/apperr"
	"identity-service/internal/crypto"
	"identity-service/internal/model"
)

// UserSource looks up users for credential verification.
type UserSource interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// Handler handles authentication endpoints.
type Handler struct {
	users     UserSource
	jwtSecret string
}

// NewHandler creates a new auth Handler.
func NewHandler(users UserSource, jwtSecret string) *Handler {
	return &Handler{users: users, jwtSecret: jwtSecret}
}

// Login handles POST /auth/login. On success the signed token is set as the
// access_token cookie and the user is returned.
func (h *Handler) Login(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Email == "" {
		return apperr.BadRequestError("Email is required")
	}
	if body.Password == "" {
		return apperr.BadRequestError("Password is required")
	}

	user, err := h.users.GetByEmail(c.Context(), body.Email)
	if err != nil {
		return apperr.ForbiddenError("User or password invalid")
	}
	if !user.IsActive {
		return apperr.ForbiddenError("Account is disabled")
	}
	if !crypto.CheckPassword(body.Password, user.HashedPassword) {
		return apperr.ForbiddenError("User or password invalid")
	}

	token, err := GenerateAccessToken(user.ID, user.CompanyID, h.jwtSecret)
	if err != nil {
		return apperr.ServiceError("Failed to generate access token")
	}

	c.Cookie(&fiber.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Expires:  time.Now().Add(AccessTokenTTL),
		HTTPOnly: true,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{"data": user})
}

// VerifyPassword handles POST /verify_password. It checks credentials without
// issuing a token.
func (h *Handler) VerifyPassword(c *fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Email == "" {
		return apperr.BadRequestError("Email is required")
	}
	if body.Password == "" {
		return apperr.BadRequestError("Password is required")
	}

	user, err := h.users.GetByEmail(c.Context(), body.Email)
	if err != nil || !crypto.CheckPassword(body.Password, user.HashedPassword) {
		return apperr.ForbiddenError("User or password invalid")
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"valid": true, "user_id": user.ID}})
}

// Logout handles POST /auth/logout by clearing the cookie.
func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// RegisterRoutes registers the unauthenticated auth routes.
func RegisterRoutes(app *fiber.App, h *Handler) {
	app.Post("/auth/login", h.Login)
	app.Post("/auth/logout", h.Logout)
	app.Post("/verify_password", h.VerifyPassword)
}
