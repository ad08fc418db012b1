package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jagadeesh/clerkhook/internal/db"
)

func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
	}
}

// Ready reports database reachability. Without a database the service can still
// verify and publish, so a nil db is reported but not treated as failure.
func Ready(d *db.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d == nil || d.Pool == nil {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"ok": true,
				"db": "not_configured",
			})
		}

		ctx, cancel := context.WithTimeout(c.Context(), 1*time.Second)
		defer cancel()

		if err := d.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"ok":     false,
				"reason": "db_unreachable",
			})
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"ok": true,
			"db": "ok",
		})
	}
}
