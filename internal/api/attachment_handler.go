package api

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"identity-service/internal/apperr"
	"identity-service/internal/model"
	"identity-service/internal/storage"
	"identity-service/internal/tenant"
)

// AttachmentStore is the slice of the Storage Service client the attachment
// handlers use.
type AttachmentStore interface {
	Enabled() bool
	MaxBytes() int64
	Upload(ctx context.Context, kind storage.OwnerKind, ownerID, filename, contentType string, data []byte, token string) (string, error)
	Download(ctx context.Context, kind storage.OwnerKind, ownerID, token string) ([]byte, string, error)
	Metadata(ctx context.Context, kind storage.OwnerKind, ownerID string, includeVersions bool, token string) (map[string]any, error)
	Delete(ctx context.Context, fileID, token string) error
}

// attachmentTarget describes one entity's attachment slot. The entity must
// already be known to exist; companyID is its owning tenant and fileID the
// current reference (nil when absent).
type attachmentTarget struct {
	kind      storage.OwnerKind
	entity    string // "Company", "Customer", "User" — used in messages
	label     string // "logo" or "avatar" — form field and message noun
	id        string
	companyID string
	fileID    *string
	setRef    func(ctx context.Context, fileID *string) error
}

// Attachments implements the upload/download/delete lifecycle shared by
// company logos, customer logos and user avatars.
type Attachments struct {
	store AttachmentStore
	log   *zap.Logger
}

func NewAttachments(store AttachmentStore, log *zap.Logger) *Attachments {
	return &Attachments{store: store, log: log}
}

func (h *Attachments) upload(c *fiber.Ctx, p *model.Principal, t attachmentTarget) error {
	if err := tenant.Authorize(p, t.companyID, tenant.ActionManage, t.label); err != nil {
		return err
	}

	file, err := c.FormFile(t.label)
	if err != nil {
		return apperr.BadRequestError(fmt.Sprintf("No %s file provided", t.label))
	}

	if !h.store.Enabled() {
		return apperr.ServiceUnavailableError("Storage Service disabled")
	}

	// Reject oversized input before buffering or any remote call.
	if max := h.store.MaxBytes(); max > 0 && file.Size > max {
		return apperr.FileTooLargeError(file.Size, max)
	}

	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open uploaded file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("read uploaded file: %w", err)
	}

	contentType := file.Header.Get("Content-Type")
	fileID, err := h.store.Upload(c.Context(), t.kind, t.id, file.Filename,
		contentType, data, callerToken(c))
	if err != nil {
		return h.mapUploadError(err, t)
	}

	if err := t.setRef(c.Context(), &fileID); err != nil {
		return fmt.Errorf("set %s reference: %w", t.label, err)
	}

	h.log.Info("attachment uploaded",
		zap.String("entity", t.entity),
		zap.String("id", t.id),
		zap.String("file_id", fileID))

	return c.Status(201).JSON(fiber.Map{
		"message":           fmt.Sprintf("%s uploaded successfully", titleCase(t.label)),
		t.label + "_file_id": fileID,
		"has_" + t.label:     true,
	})
}

func (h *Attachments) mapUploadError(err error, t attachmentTarget) error {
	var valErr *storage.ValidationError
	switch {
	case errors.Is(err, storage.ErrDisabled):
		return apperr.ServiceUnavailableError("Storage Service disabled")
	case errors.As(err, &valErr):
		return apperr.BadRequestError(valErr.Error())
	default:
		h.log.Error("storage upload failed",
			zap.String("entity", t.entity), zap.String("id", t.id), zap.Error(err))
		return apperr.ServiceError(fmt.Sprintf("Failed to upload %s", t.label))
	}
}

func (h *Attachments) download(c *fiber.Ctx, p *model.Principal, t attachmentTarget) error {
	if err := tenant.Authorize(p, t.companyID, tenant.ActionView, t.label); err != nil {
		return err
	}

	if t.fileID == nil {
		return apperr.NotFoundError(fmt.Sprintf("%s has no %s", t.entity, t.label))
	}

	// A disabled Storage Service looks like absence to download callers.
	if !h.store.Enabled() {
		return apperr.NotFoundError("Storage Service disabled")
	}

	if c.Query("metadata") == "true" {
		meta, err := h.store.Metadata(c.Context(), t.kind, t.id,
			c.Query("include_versions") == "true", callerToken(c))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperr.NotFoundError(fmt.Sprintf("%s has no %s", t.entity, t.label))
			}
			return apperr.ServiceError(fmt.Sprintf("Failed to retrieve %s metadata", t.label))
		}
		return c.JSON(fiber.Map{"data": meta})
	}

	data, contentType, err := h.store.Download(c.Context(), t.kind, t.id, callerToken(c))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFoundError(fmt.Sprintf("%s has no %s", t.entity, t.label))
		}
		h.log.Error("storage download failed",
			zap.String("entity", t.entity), zap.String("id", t.id), zap.Error(err))
		return apperr.ServiceError(fmt.Sprintf("Failed to retrieve %s", t.label))
	}

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", "inline")
	c.Set("Cache-Control", "public, max-age=3600")
	return c.Send(data)
}

func (h *Attachments) remove(c *fiber.Ctx, p *model.Principal, t attachmentTarget) error {
	if err := tenant.Authorize(p, t.companyID, tenant.ActionDelete, t.label); err != nil {
		return err
	}

	if t.fileID == nil {
		return apperr.NotFoundError(fmt.Sprintf("%s has no %s to delete", t.entity, t.label))
	}

	// Remote removal is best effort: the local reference is cleared even when
	// the Storage Service is disabled or the delete call fails.
	if h.store.Enabled() {
		if err := h.store.Delete(c.Context(), *t.fileID, callerToken(c)); err != nil {
			h.log.Warn("failed to delete attachment from storage",
				zap.String("entity", t.entity),
				zap.String("file_id", *t.fileID),
				zap.Error(err))
		}
	}

	if err := t.setRef(c.Context(), nil); err != nil {
		return fmt.Errorf("clear %s reference: %w", t.label, err)
	}

	h.log.Info("attachment deleted",
		zap.String("entity", t.entity), zap.String("id", t.id))

	return c.SendStatus(204)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
