package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"identity-service/internal/apperr"
	"identity-service/internal/model"
	"identity-service/internal/storage"
	"identity-service/internal/store"
	"identity-service/internal/tenant"
)

type CustomerStore interface {
	GetByID(ctx context.Context, id string) (*model.Customer, error)
	ListByCompany(ctx context.Context, companyID string) ([]*model.Customer, error)
	Create(ctx context.Context, c *model.Customer) error
	Update(ctx context.Context, c *model.Customer) error
	Delete(ctx context.Context, id string) error
	SetLogo(ctx context.Context, id string, fileID *string) error
}

type CustomerHandler struct {
	customers   CustomerStore
	attachments *Attachments
	log         *zap.Logger
}

func NewCustomerHandler(customers CustomerStore, attachments *Attachments, log *zap.Logger) *CustomerHandler {
	return &CustomerHandler{customers: customers, attachments: attachments, log: log}
}

type customerPayload struct {
	Name          string  `json:"name"`
	Email         *string `json:"email"`
	ContactPerson *string `json:"contact_person"`
	PhoneNumber   *string `json:"phone_number"`
	Address       *string `json:"address"`
}

// List handles GET /customers, scoped to the caller's company.
func (h *CustomerHandler) List(c *fiber.Ctx) error {
	p := getPrincipal(c)
	customers, err := h.customers.ListByCompany(c.Context(), p.CompanyID)
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	return c.JSON(fiber.Map{"data": customers})
}

// Get handles GET /customers/:id.
func (h *CustomerHandler) Get(c *fiber.Ctx) error {
	customer, err := h.customers.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("Customer not found")
		}
		return fmt.Errorf("get customer: %w", err)
	}
	if err := tenant.AuthorizeAccess(getPrincipal(c), customer.CompanyID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": customer})
}

// Create handles POST /customers. The owning company always comes from the
// validated principal; a company_id in the payload is ignored.
func (h *CustomerHandler) Create(c *fiber.Ctx) error {
	var body customerPayload
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Name == "" {
		return apperr.BadRequestError("Name is required")
	}

	p := getPrincipal(c)
	customer := &model.Customer{
		CompanyID:     p.CompanyID,
		Name:          body.Name,
		Email:         body.Email,
		ContactPerson: body.ContactPerson,
		PhoneNumber:   body.PhoneNumber,
		Address:       body.Address,
	}
	if err := h.customers.Create(c.Context(), customer); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return apperr.ConflictError("Customer email already in use")
		}
		return fmt.Errorf("create customer: %w", err)
	}

	h.log.Info("customer created",
		zap.String("id", customer.ID), zap.String("company_id", customer.CompanyID))
	return c.Status(201).JSON(fiber.Map{"data": customer})
}

// Update handles PUT /customers/:id.
func (h *CustomerHandler) Update(c *fiber.Ctx) error {
	customer, err := h.customers.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("Customer not found")
		}
		return fmt.Errorf("get customer: %w", err)
	}
	if err := tenant.Authorize(getPrincipal(c), customer.CompanyID, tenant.ActionManage, "customer"); err != nil {
		return err
	}

	var body customerPayload
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Name != "" {
		customer.Name = body.Name
	}
	customer.Email = body.Email
	customer.ContactPerson = body.ContactPerson
	customer.PhoneNumber = body.PhoneNumber
	customer.Address = body.Address

	if err := h.customers.Update(c.Context(), customer); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return apperr.ConflictError("Customer email already in use")
		}
		return fmt.Errorf("update customer: %w", err)
	}
	return c.JSON(fiber.Map{"data": customer})
}

// Delete handles DELETE /customers/:id.
func (h *CustomerHandler) Delete(c *fiber.Ctx) error {
	customer, err := h.customers.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("Customer not found")
		}
		return fmt.Errorf("get customer: %w", err)
	}
	if err := tenant.Authorize(getPrincipal(c), customer.CompanyID, tenant.ActionDelete, "customer"); err != nil {
		return err
	}

	if err := h.customers.Delete(c.Context(), customer.ID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	h.log.Info("customer deleted", zap.String("id", customer.ID))
	return c.SendStatus(204)
}

func (h *CustomerHandler) logoTarget(c *fiber.Ctx) (attachmentTarget, error) {
	customer, err := h.customers.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return attachmentTarget{}, apperr.NotFoundError("Customer not found")
		}
		return attachmentTarget{}, fmt.Errorf("get customer: %w", err)
	}
	return attachmentTarget{
		kind:      storage.OwnerCustomers,
		entity:    "Customer",
		label:     "logo",
		id:        customer.ID,
		companyID: customer.CompanyID,
		fileID:    customer.LogoFileID,
		setRef: func(ctx context.Context, fileID *string) error {
			return h.customers.SetLogo(ctx, customer.ID, fileID)
		},
	}, nil
}

// UploadLogo handles POST /customers/:id/logo.
func (h *CustomerHandler) UploadLogo(c *fiber.Ctx) error {
	t, err := h.logoTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.upload(c, getPrincipal(c), t)
}

// GetLogo handles GET /customers/:id/logo.
func (h *CustomerHandler) GetLogo(c *fiber.Ctx) error {
	t, err := h.logoTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.download(c, getPrincipal(c), t)
}

// DeleteLogo handles DELETE /customers/:id/logo.
func (h *CustomerHandler) DeleteLogo(c *fiber.Ctx) error {
	t, err := h.logoTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.remove(c, getPrincipal(c), t)
}
