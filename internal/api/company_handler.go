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

type CompanyStore interface {
	GetByID(ctx context.Context, id string) (*model.Company, error)
	List(ctx context.Context) ([]*model.Company, error)
	Create(ctx context.Context, c *model.Company) error
	Update(ctx context.Context, c *model.Company) error
	Delete(ctx context.Context, id string) error
	SetLogo(ctx context.Context, id string, fileID *string) error
}

type CompanyHandler struct {
	companies   CompanyStore
	attachments *Attachments
	log         *zap.Logger
}

func NewCompanyHandler(companies CompanyStore, attachments *Attachments, log *zap.Logger) *CompanyHandler {
	return &CompanyHandler{companies: companies, attachments: attachments, log: log}
}

type companyPayload struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Website     *string `json:"website"`
	PhoneNumber *string `json:"phone_number"`
	Email       *string `json:"email"`
	Address     *string `json:"address"`
	PostalCode  *string `json:"postal_code"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
}

// List handles GET /companies.
func (h *CompanyHandler) List(c *fiber.Ctx) error {
	companies, err := h.companies.List(c.Context())
	if err != nil {
		return fmt.Errorf("list companies: %w", err)
	}
	return c.JSON(fiber.Map{"data": companies})
}

// Get handles GET /companies/:id.
func (h *CompanyHandler) Get(c *fiber.Ctx) error {
	company, err := h.companies.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("Company not found")
		}
		return fmt.Errorf("get company: %w", err)
	}
	return c.JSON(fiber.Map{"data": company})
}

// Create handles POST /companies.
func (h *CompanyHandler) Create(c *fiber.Ctx) error {
	var body companyPayload
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Name == "" {
		return apperr.BadRequestError("Name is required")
	}

	company := &model.Company{
		Name:        body.Name,
		Description: body.Description,
		Website:     body.Website,
		PhoneNumber: body.PhoneNumber,
		Email:       body.Email,
		Address:     body.Address,
		PostalCode:  body.PostalCode,
		City:        body.City,
		Country:     body.Country,
	}
	if err := h.companies.Create(c.Context(), company); err != nil {
		return fmt.Errorf("create company: %w", err)
	}

	h.log.Info("company created", zap.String("id", company.ID))
	return c.Status(201).JSON(fiber.Map{"data": company})
}

// Update handles PUT /companies/:id. Only the company itself may change its
// record.
func (h *CompanyHandler) Update(c *fiber.Ctx) error {
	id := c.Params("id")
	company, err := h.companies.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("Company not found")
		}
		return fmt.Errorf("get company: %w", err)
	}
	if err := tenant.AuthorizeCompany(getPrincipal(c), company.ID, tenant.ActionManage); err != nil {
		return err
	}

	var body companyPayload
	if err := c.BodyParser(&body); err != nil {
		return apperr.BadRequestError("Invalid request body")
	}
	if body.Name != "" {
		company.Name = body.Name
	}
	company.Description = body.Description
	company.Website = body.Website
	company.PhoneNumber = body.PhoneNumber
	company.Email = body.Email
	company.Address = body.Address
	company.PostalCode = body.PostalCode
	company.City = body.City
	company.Country = body.Country

	if err := h.companies.Update(c.Context(), company); err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	return c.JSON(fiber.Map{"data": company})
}

// Delete handles DELETE /companies/:id.
func (h *CompanyHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	company, err := h.companies.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFoundError("Company not found")
		}
		return fmt.Errorf("get company: %w", err)
	}
	if err := tenant.AuthorizeCompany(getPrincipal(c), company.ID, tenant.ActionDelete); err != nil {
		return err
	}

	if err := h.companies.Delete(c.Context(), id); err != nil {
		return fmt.Errorf("delete company: %w", err)
	}

	h.log.Info("company deleted", zap.String("id", id))
	return c.SendStatus(204)
}

// logoTarget loads the company and describes its logo slot.
func (h *CompanyHandler) logoTarget(c *fiber.Ctx) (attachmentTarget, error) {
	id := c.Params("id")
	company, err := h.companies.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return attachmentTarget{}, apperr.NotFoundError("Company not found")
		}
		return attachmentTarget{}, fmt.Errorf("get company: %w", err)
	}
	return attachmentTarget{
		kind:      storage.OwnerCompanies,
		entity:    "Company",
		label:     "logo",
		id:        company.ID,
		companyID: company.ID,
		fileID:    company.LogoFileID,
		setRef: func(ctx context.Context, fileID *string) error {
			return h.companies.SetLogo(ctx, company.ID, fileID)
		},
	}, nil
}

// UploadLogo handles POST /companies/:id/logo.
func (h *CompanyHandler) UploadLogo(c *fiber.Ctx) error {
	t, err := h.logoTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.upload(c, getPrincipal(c), t)
}

// GetLogo handles GET /companies/:id/logo.
func (h *CompanyHandler) GetLogo(c *fiber.Ctx) error {
	t, err := h.logoTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.download(c, getPrincipal(c), t)
}

// DeleteLogo handles DELETE /companies/:id/logo.
func (h *CompanyHandler) DeleteLogo(c *fiber.Ctx) error {
	t, err := h.logoTarget(c)
	if err != nil {
		return err
	}
	return h.attachments.remove(c, getPrincipal(c), t)
}
