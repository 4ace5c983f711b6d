package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"identity-service/internal/apperr"
	"identity-service/internal/crypto"
	"identity-service/internal/model"
	"identity-service/internal/storage"
	"identity-service/internal/store"
	"identity-service/internal/tenant"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
	ListByCompany(ctx context.Context, companyID string) ([]*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
	SetAvatar(ctx context.Context, id string, fileID *string) error
}

type UserHandler struct {
	users       UserStore
	attachments *Attachments
	log         *zap.Logger
}

func NewUserHandler(users UserStore, attachments *Attachments, log *zap.Logger) *UserHandler {
	return &UserHandler{users: users, attachments: attachments, log: log}
}

type userPayload struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	Language    *string `json:"language"`
	PhoneNumber *string `json:"phone_number"`
	IsActive    *bool   `json:"is_active"`
	IsVerified  *bool   `json:"is_verified"`
}

// List handles GET /users, scoped to the caller's company.
func (h *UserHandler) List(c *fiber.Ctx) error {
	p := getPrincipal(c)
	users, err := h.users.ListByCompany(c.Context(), p.CompanyID)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	return c.JSON(fiber.Map{"data": users})
}

// Get handles GET /users/:id.
func (h *UserHandler) Get(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("User not found")
		}
		return fmt.Errorf("get user: %w", err)
	}
	if err := tenant.AuthorizeAccess(getPrincipal(c), user.CompanyID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": user})
}

// Create handles POST /users. The company always comes from the validated
// principal; a company_id in the payload is ignored.
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var body userPayload
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Email == "" {
		return apperr.BadRequestError("Email is required")
	}
	if body.Password == "" {
		return apperr.BadRequestError("Password is required")
	}

	hashed, err := crypto.HashPassword(body.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	p := getPrincipal(c)
	user := &model.User{
		CompanyID:      p.CompanyID,
		Email:          body.Email,
		HashedPassword: hashed,
		FirstName:      body.FirstName,
		LastName:       body.LastName,
		Language:       body.Language,
		PhoneNumber:    body.PhoneNumber,
		IsActive:       true,
	}
	if body.IsActive != nil {
		user.IsActive = *body.IsActive
	}
	if body.IsVerified != nil {
		user.IsVerified = *body.IsVerified
	}

	if err := h.users.Create(c.Context(), user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return apperr.ConflictError("Email already in use")
		}
		return fmt.Errorf("create user: %w", err)
	}

	h.log.Info("user created",
		zap.String("id", user.ID), zap.String("company_id", user.CompanyID))
	return c.Status(201).JSON(fiber.Map{"data": user})
}

// Update handles PUT /users/:id.
func (h *UserHandler) Update(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("User not found")
		}
		return fmt.Errorf("get user: %w", err)
	}
	if err := tenant.Authorize(getPrincipal(c), user.CompanyID, tenant.ActionManage, "user"); err != nil {
		return err
	}

	var body userPayload
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Email != "" {
		user.Email = body.Email
	}
	user.FirstName = body.FirstName
	user.LastName = body.LastName
	user.Language = body.Language
	user.PhoneNumber = body.PhoneNumber
	if body.IsActive != nil {
		user.IsActive = *body.IsActive
	}
	if body.IsVerified != nil {
		user.IsVerified = *body.IsVerified
	}

	if err := h.users.Update(c.Context(), user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return apperr.ConflictError("Email already in use")
		}
		return fmt.Errorf("update user: %w", err)
	}
	return c.JSON(fiber.Map{"data": user})
}

// Delete handles DELETE /users/:id.
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	user, err := h.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("User not found")
		}
		return fmt.Errorf("get user: %w", err)
	}
	if err := tenant.Authorize(getPrincipal(c), user.CompanyID, tenant.ActionDelete, "user"); err != nil {
		return err
	}

	if err := h.users.Delete(c.Context(), user.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	h.log.Info("user deleted", zap.String("id", user.ID))
	return c.SendStatus(204)
}

func (h *UserHandler) avatarTarget(c *fiber.Ctx) (attachmentTarget, error) {
	user, err := h.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return attachmentTarget{}, apperr.NotFoundError("User not found")
		}
		return attachmentTarget{}, fmt.Errorf("get user: %w", err)
	}
	return attachmentTarget{
		kind:      storage.OwnerUsers,
		entity:    "User",
		label:     "avatar",
		id:        user.ID,
		companyID: user.CompanyID,
		fileID:    user.AvatarFileID,
		setRef: func(ctx context.Context, fileID *string) error {
			return h.users.SetAvatar(ctx, user.ID, fileID)
		},
	}, nil
}

// UploadAvatar handles POST /users/:id/avatar.
func (h *UserHandler) UploadAvatar(c *fiber.Ctx) error {
	t, err := h.avatarTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.upload(c, getPrincipal(c), t)
}

// GetAvatar handles GET /users/:id/avatar.
func (h *UserHandler) GetAvatar(c *fiber.Ctx) error {
	t, err := h.avatarTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.download(c, getPrincipal(c), t)
}

// DeleteAvatar handles DELETE /users/:id/avatar.
func (h *UserHandler) DeleteAvatar(c *fiber.Ctx) error {
	t, err := h.avatarTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.remove(c, getPrincipal(c), t)
}
