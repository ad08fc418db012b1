package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jagadeesh/clerkhook/internal/store"
)

type EventReader interface {
	Recent(ctx context.Context, eventType string, limit int) ([]store.Record, error)
	Payload(ctx context.Context, deliveryID string) ([]byte, error)
}

type AdminEventsHandler struct {
	store EventReader
}

func NewAdminEventsHandler(r EventReader) *AdminEventsHandler {
	return &AdminEventsHandler{store: r}
}

// List serves GET /admin/events?type=user.created&limit=50.
func (h *AdminEventsHandler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if h.store == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "db_not_configured"})
		}
		eventType := strings.TrimSpace(c.Query("type"))
		limit := c.QueryInt("limit", 50)

		records, err := h.store.Recent(c.Context(), eventType, limit)
		if err != nil {
			slog.Error("list webhook events failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "events_list_failed"})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"events": records})
	}
}

// Payload serves GET /admin/events/:delivery_id/payload with the verified bytes.
func (h *AdminEventsHandler) Payload() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if h.store == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "db_not_configured"})
		}
		deliveryID := strings.TrimSpace(c.Params("delivery_id"))
		if deliveryID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_delivery_id"})
		}

		payload, err := h.store.Payload(c.Context(), deliveryID)
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "event_not_found"})
		}
		if err != nil {
			slog.Error("load webhook payload failed", "delivery_id", deliveryID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "payload_load_failed"})
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).Send(payload)
	}
}
