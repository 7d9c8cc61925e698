package main

import (
	"context"
	"fmt"
	"time"

	"dashgate/internal/config"
	"dashgate/internal/handlers"
	"dashgate/internal/middleware"
	"dashgate/internal/repositories"
	"dashgate/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	log "github.com/sirupsen/logrus"
)

// NewApp wires the credential store, the auth service and the HTTP routes.
// The returned cleanup closes the database pool.
func NewApp(ctx context.Context, cfg *config.Config, publisher services.EventPublisher, lg log.FieldLogger) (*fiber.App, func() error, error) {
	db, err := repositories.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access database pool: %w", err)
	}
	cleanup := sqlDB.Close

	userRepo := repositories.NewGORMUserRepository(db)
	if err := userRepo.Initialize(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	hasher, err := cfg.NewHasher()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	authService, err := services.NewAuthService(userRepo, hasher, publisher, lg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	authHandler := handlers.NewAuthHandler(authService, lg)
	dashboardHandler := handlers.NewDashboardHandler(cfg.Dashboards)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		code := fiber.StatusOK
		if err := sqlDB.PingContext(c.UserContext()); err != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)

	protectedRoutes := apiV1.Group("", middleware.AuthRequired(authService, lg))
	dashboardHandler.RegisterRoutes(protectedRoutes)

	return app, cleanup, nil
}
