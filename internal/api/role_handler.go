package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"identity-service/internal/apperr"
	"identity-service/internal/guardian"
	"identity-service/internal/model"
	"identity-service/internal/store"
	"identity-service/internal/tenant"
)

// GuardianClient is the slice of the Guardian Service client the role
// handlers use.
type GuardianClient interface {
	ListRoles(ctx context.Context, userID, token string) ([]guardian.Record, error)
	ListPermissions(ctx context.Context, userID, token string) ([]guardian.Record, error)
	ListPolicies(ctx context.Context, userID, token string) ([]guardian.Record, error)
	AssignRole(ctx context.Context, userID, roleID, token string) (guardian.Record, error)
	GetRole(ctx context.Context, roleID, token string) (guardian.Record, error)
	RevokeRole(ctx context.Context, userID, roleID, token string) error
}

// RoleHandler exposes a user's roles, permissions and policies. The data
// lives in the Guardian Service; the handler only validates the target user
// and the caller's tenant before delegating.
type RoleHandler struct {
	users    UserStore
	guardian GuardianClient
	log      *zap.Logger
}

func NewRoleHandler(users UserStore, guardian GuardianClient, log *zap.Logger) *RoleHandler {
	return &RoleHandler{users: users, guardian: guardian, log: log}
}

// targetUser resolves the :id path parameter and checks the caller may see
// the user. Existence is verified before tenancy so a missing user is always
// a 404, never a 403.
func (h *RoleHandler) targetUser(c *fiber.Ctx) (*model.User, error) {
	user, err := h.users.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFoundError("User not found")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := tenant.AuthorizeAccess(getPrincipal(c), user.CompanyID); err != nil {
		return nil, err
	}
	return user, nil
}

func mapGuardianError(err error) error {
	var fetchErr *guardian.FetchError
	switch {
	case errors.Is(err, guardian.ErrDisabled):
		return apperr.ServiceUnavailableError("Guardian Service is disabled")
	case errors.Is(err, guardian.ErrConflict):
		return apperr.ConflictError("Role is already assigned to this user")
	case errors.Is(err, guardian.ErrNotFound):
		return apperr.NotFoundError("Role not found")
	case errors.As(err, &fetchErr):
		return apperr.ServiceError(fetchErr.Error())
	default:
		return err
	}
}

// ListRoles handles GET /users/:id/roles.
func (h *RoleHandler) ListRoles(c *fiber.Ctx) error {
	user, err := h.targetUser(c)
	if err != nil {
		return err
	}
	roles, err := h.guardian.ListRoles(c.Context(), user.ID, callerToken(c))
	if err != nil {
		return mapGuardianError(err)
	}
	return c.JSON(fiber.Map{"data": roles})
}

// ListPermissions handles GET /users/:id/permissions.
func (h *RoleHandler) ListPermissions(c *fiber.Ctx) error {
	user, err := h.targetUser(c)
	if err != nil {
		return err
	}
	permissions, err := h.guardian.ListPermissions(c.Context(), user.ID, callerToken(c))
	if err != nil {
		return mapGuardianError(err)
	}
	return c.JSON(fiber.Map{"data": permissions})
}

// ListPolicies handles GET /users/:id/policies.
func (h *RoleHandler) ListPolicies(c *fiber.Ctx) error {
	user, err := h.targetUser(c)
	if err != nil {
		return err
	}
	policies, err := h.guardian.ListPolicies(c.Context(), user.ID, callerToken(c))
	if err != nil {
		return mapGuardianError(err)
	}
	return c.JSON(fiber.Map{"data": policies})
}

// AssignRole handles POST /users/:id/roles. The body carries the role under
// either "role_id" or "role".
func (h *RoleHandler) AssignRole(c *fiber.Ctx) error {
	user, err := h.targetUser(c)
	if err != nil {
		return err
	}

	var body struct {
		RoleID string `json:"role_id"`
		Role   string `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	roleID := body.RoleID
	if roleID == "" {
		roleID = body.Role
	}
	if roleID == "" {
		return apperr.BadRequestError("role_id is required")
	}

	record, err := h.guardian.AssignRole(c.Context(), user.ID, roleID, callerToken(c))
	if err != nil {
		return mapGuardianError(err)
	}

	h.log.Info("role assigned",
		zap.String("user_id", user.ID), zap.String("role_id", roleID))
	return c.Status(201).JSON(fiber.Map{"data": record})
}

// GetRole handles GET /users/:id/roles/:role_id.
func (h *RoleHandler) GetRole(c *fiber.Ctx) error {
	if _, err := h.targetUser(c); err != nil {
		return err
	}
	record, err := h.guardian.GetRole(c.Context(), c.Params("role_id"), callerToken(c))
	if err != nil {
		return mapGuardianError(err)
	}
	return c.JSON(fiber.Map{"data": record})
}

// RevokeRole handles DELETE /users/:id/roles/:role_id.
func (h *RoleHandler) RevokeRole(c *fiber.Ctx) error {
	user, err := h.targetUser(c)
	if err != nil {
		return err
	}
	roleID := c.Params("role_id")
	if err := h.guardian.RevokeRole(c.Context(), user.ID, roleID, callerToken(c)); err != nil {
		return mapGuardianError(err)
	}

	h.log.Info("role revoked",
		zap.String("user_id", user.ID), zap.String("role_id", roleID))
	return c.SendStatus(204)
}
