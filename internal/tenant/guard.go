// Package tenant enforces tenant isolation: a principal may only touch
// resources owned by its own company.
package tenant

import (
	"fmt"

	"identity-service/internal/apperr"
	"identity-service/internal/model"
)

// Action names the operation being guarded. The action appears verbatim in
// the denial message, which callers and tests rely on.
type Action string

const (
	ActionManage Action = "manage"
	ActionDelete Action = "delete"
	ActionView   Action = "view"
)

// Authorize checks that the principal's company owns the resource. Ids are
// compared by exact string equality, no normalization. Callers must check
// resource existence first; there is no superuser bypass here.
func Authorize(p *model.Principal, resourceCompanyID string, action Action, resource string) error {
	if p == nil {
		return apperr.UnauthorizedError("Missing or invalid JWT token")
	}
	if p.CompanyID != resourceCompanyID {
		return apperr.ForbiddenError(fmt.Sprintf(
			"Access denied: cannot %s other company's %s", action, resource))
	}
	return nil
}

// AuthorizeCompany guards operations on the company aggregate itself, where
// the company id is both the resource and the tenant.
func AuthorizeCompany(p *model.Principal, companyID string, action Action) error {
	if p == nil {
		return apperr.UnauthorizedError("Missing or invalid JWT token")
	}
	if p.CompanyID != companyID {
		return apperr.ForbiddenError(fmt.Sprintf(
			"Access denied: cannot %s other company", action))
	}
	return nil
}

// AuthorizeAccess is the plain same-company check used for tenant-owned
// resource reads and user-scoped Guardian operations, where the denial does
// not name a resource.
func AuthorizeAccess(p *model.Principal, resourceCompanyID string) error {
	if p == nil {
		return apperr.UnauthorizedError("Missing or invalid JWT token")
	}
	if p.CompanyID != resourceCompanyID {
		return apperr.ForbiddenError("Access denied")
	}
	return nil
}
