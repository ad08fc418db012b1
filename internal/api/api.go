package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/jagadeesh/clerkhook/internal/auth"
	"github.com/jagadeesh/clerkhook/internal/bus"
	"github.com/jagadeesh/clerkhook/internal/config"
	"github.com/jagadeesh/clerkhook/internal/db"
	"github.com/jagadeesh/clerkhook/internal/handlers"
	"github.com/jagadeesh/clerkhook/internal/ingest"
	"github.com/jagadeesh/clerkhook/internal/store"
	"github.com/jagadeesh/clerkhook/pkg/clerkwebhook"
)

// Deps are optional; the webhook endpoint works with none of them.
type Deps struct {
	DB     *db.DB
	Bus    bus.Bus
	Store  *store.EventStore
	Logger *slog.Logger
}

func New(cfg config.Config, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "clerkhook-api",
		IdleTimeout:  60 * time.Second,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Baseline middleware.
	app.Use(requestid.New())
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", handlers.Health())
	app.Get("/ready", handlers.Ready(deps.DB))

	// Keep nil collaborators as nil interfaces.
	var rec handlers.DeliveryRecorder
	var reader handlers.EventReader
	if deps.Store != nil && deps.Store.DB != nil {
		rec = deps.Store
		reader = deps.Store
	}
	var ing handlers.Ingestor
	if deps.DB != nil && deps.DB.Pool != nil {
		ing = &ingest.UserIngestor{DB: deps.DB.Pool}
	}

	// A root mount would put the webhook health route on the app's own /health.
	webhookPath := cfg.WebhookPath
	if strings.Trim(webhookPath, " /") == "" {
		if webhookPath != "" {
			slog.Warn("WEBHOOK_PATH cannot be the root path; using default", "value", webhookPath, "path", clerkwebhook.DefaultPath)
		}
		webhookPath = clerkwebhook.DefaultPath
	}

	clerkEvents := handlers.NewClerkEventsHandler(rec, deps.Bus, ing)
	manager := clerkwebhook.New(clerkwebhook.Options{
		Handlers:  clerkEvents.Registry(cfg.WebhookEvents),
		SecretKey: cfg.SigningSecret,
		Path:      webhookPath,
		Logger:    deps.Logger,
	})
	if err := manager.ConfigErr(); err != nil {
		slog.Error("webhook endpoint will reject every delivery", "path", manager.Path(), "error", err)
	}

	var webhookMiddleware []fiber.Handler
	if cfg.WebhookRateLimit > 0 {
		webhookMiddleware = append(webhookMiddleware, RateLimit(cfg.WebhookRateLimit, cfg.WebhookRateBurst))
	}
	manager.Register(app, webhookMiddleware...)

	adminEvents := handlers.NewAdminEventsHandler(reader)
	adminGroup := app.Group("/admin", auth.RequireAuth(cfg.JWTSecret), auth.RequireRole("admin"))
	adminGroup.Get("/events", adminEvents.List())
	adminGroup.Get("/events/:delivery_id/payload", adminEvents.Payload())

	return app
}
