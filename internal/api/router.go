package api

import "github.com/gofiber/fiber/v2"

// Version is the service version reported by GET /version. Overridden at
// build time via -ldflags.
var Version = "dev"

// Handlers bundles everything RegisterRoutes mounts.
type Handlers struct {
	Companies *CompanyHandler
	Customers *CustomerHandler
	Users     *UserHandler
	Roles     *RoleHandler
}

// RegisterRoutes mounts the authenticated API. The supplied middleware run on
// every route in the group; callers pass the JWT middleware here so handlers
// can assume a validated principal.
func RegisterRoutes(app *fiber.App, h Handlers, middleware ...fiber.Handler) {
	api := app.Group("/api", middleware...)

	api.Get("/companies", h.Companies.List)
	api.Get("/companies/:id", h.Companies.Get)
	api.Post("/companies", h.Companies.Create)
	api.Put("/companies/:id", h.Companies.Update)
	api.Delete("/companies/:id", h.Companies.Delete)
	api.Post("/companies/:id/logo", h.Companies.UploadLogo)
	api.Get("/companies/:id/logo", h.Companies.GetLogo)
	api.Delete("/companies/:id/logo", h.Companies.DeleteLogo)

	api.Get("/customers", h.Customers.List)
	api.Get("/customers/:id", h.Customers.Get)
	api.Post("/customers", h.Customers.Create)
	api.Put("/customers/:id", h.Customers.Update)
	api.Delete("/customers/:id", h.Customers.Delete)
	api.Post("/customers/:id/logo", h.Customers.UploadLogo)
	api.Get("/customers/:id/logo", h.Customers.GetLogo)
	api.Delete("/customers/:id/logo", h.Customers.DeleteLogo)

	api.Get("/users", h.Users.List)
	api.Get("/users/:id", h.Users.Get)
	api.Post("/users", h.Users.Create)
	api.Put("/users/:id", h.Users.Update)
	api.Delete("/users/:id", h.Users.Delete)
	api.Post("/users/:id/avatar", h.Users.UploadAvatar)
	api.Get("/users/:id/avatar", h.Users.GetAvatar)
	api.Delete("/users/:id/avatar", h.Users.DeleteAvatar)

	api.Get("/users/:id/roles", h.Roles.ListRoles)
	api.Post("/users/:id/roles", h.Roles.AssignRole)
	api.Get("/users/:id/roles/:role_id", h.Roles.GetRole)
	api.Delete("/users/:id/roles/:role_id", h.Roles.RevokeRole)
	api.Get("/users/:id/permissions", h.Roles.ListPermissions)
	api.Get("/users/:id/policies", h.Roles.ListPolicies)
}

// RegisterHealthRoutes mounts the unauthenticated liveness endpoints.
func RegisterHealthRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"version": Version})
	})
}
