package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// Shutdown stops accepting connections and waits for in-flight webhooks
// until ctx expires.
func Shutdown(ctx context.Context, app *fiber.App) error {
	return app.ShutdownWithContext(ctx)
}
