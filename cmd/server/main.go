package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"identity-service/internal/api"
	"identity-service/internal/apperr"
	"identity-service/internal/auth"
	"identity-service/internal/config"
	"identity-service/internal/guardian"
	"identity-service/internal/storage"
	"identity-service/internal/store"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("config loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("db_host", cfg.Database.Host),
		zap.Bool("guardian_enabled", cfg.Guardian.Enabled),
		zap.Bool("storage_enabled", cfg.Storage.Enabled))

	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Bootstrap(ctx); err != nil {
		zlog.Fatal("failed to bootstrap schema", zap.Error(err))
	}

	companies := store.NewCompanyRepo(db)
	customers := store.NewCustomerRepo(db)
	users := store.NewUserRepo(db)

	guardianClient := guardian.New(guardian.Config{
		Enabled: cfg.Guardian.Enabled,
		BaseURL: cfg.Guardian.URL,
		Timeout: cfg.Guardian.Timeout(),
	}, zlog)

	storageClient := storage.New(storage.Config{
		Enabled:  cfg.Storage.Enabled,
		BaseURL:  cfg.Storage.URL,
		Timeout:  cfg.Storage.Timeout(),
		MaxBytes: cfg.Storage.MaxAttachmentBytes(),
	}, zlog)

	app := fiber.New(fiber.Config{
		BodyLimit:    int(cfg.Storage.MaxAttachmentBytes()) * 2,
		ErrorHandler: newErrorHandler(zlog, cfg.Debug),
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	api.RegisterHealthRoutes(app)

	authHandler := auth.NewHandler(users, cfg.JWTSecret)
	auth.RegisterRoutes(app, authHandler)

	attachments := api.NewAttachments(storageClient, zlog)
	api.RegisterRoutes(app, api.Handlers{
		Companies: api.NewCompanyHandler(companies, attachments, zlog),
		Customers: api.NewCustomerHandler(customers, attachments, zlog),
		Users:     api.NewUserHandler(users, attachments, zlog),
		Roles:     api.NewRoleHandler(users, guardianClient, zlog),
	}, auth.Middleware(cfg.JWTSecret))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	zlog.Info("starting server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// newErrorHandler converts handler errors to the JSON error envelope. Known
// application errors keep their status and message; everything else becomes a
// 500 with the detail logged rather than exposed, unless debug is on.
func newErrorHandler(zlog *zap.Logger, debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			return c.Status(appErr.Status).JSON(apperr.ErrorResponse{Error: appErr})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(apperr.ErrorResponse{
				Error: &apperr.AppError{Code: "INTERNAL_ERROR", Status: fiberErr.Code, Message: fiberErr.Message},
			})
		}

		zlog.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))

		message := "Internal server error"
		if debug {
			message = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(apperr.ErrorResponse{
			Error: &apperr.AppError{
				Code:    "INTERNAL_ERROR",
				Status:  fiber.StatusInternalServerError,
				Message: message,
			},
		})
	}
}
