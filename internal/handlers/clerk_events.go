package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jagadeesh/clerkhook/internal/bus"
	"github.com/jagadeesh/clerkhook/internal/events"
	"github.com/jagadeesh/clerkhook/pkg/clerkwebhook"
)

// DeliveryRecorder is the audit trail; *store.EventStore implements it.
type DeliveryRecorder interface {
	Record(ctx context.Context, evt clerkwebhook.Event) (processed bool, err error)
	MarkProcessed(ctx context.Context, deliveryID string) error
	MarkFailed(ctx context.Context, deliveryID string, cause error) error
}

type Ingestor interface {
	Ingest(ctx context.Context, e events.WebhookReceived) error
}

// ClerkEventsHandler is the application side of the webhook registry:
// record, then hand off to the bus (preferred) or ingest inline.
type ClerkEventsHandler struct {
	rec DeliveryRecorder
	bus bus.Bus
	ing Ingestor
}

// NewClerkEventsHandler accepts nil for any collaborator that is not configured.
func NewClerkEventsHandler(rec DeliveryRecorder, b bus.Bus, ing Ingestor) *ClerkEventsHandler {
	return &ClerkEventsHandler{rec: rec, bus: b, ing: ing}
}

// Registry maps each type to Handle.
func (h *ClerkEventsHandler) Registry(types []clerkwebhook.EventType) map[clerkwebhook.EventType]clerkwebhook.Handler {
	out := make(map[clerkwebhook.EventType]clerkwebhook.Handler, len(types))
	for _, t := range types {
		out[t] = h.Handle
	}
	return out
}

func (h *ClerkEventsHandler) Handle(ctx context.Context, evt clerkwebhook.Event) error {
	if h.rec != nil {
		processed, err := h.rec.Record(ctx, evt)
		if err != nil {
			return fmt.Errorf("record delivery: %w", err)
		}
		if processed {
			slog.Info("duplicate webhook delivery skipped",
				"delivery_id", evt.DeliveryID,
				"type", evt.Type,
			)
			return nil
		}
	}

	msg := events.WebhookReceived{
		DeliveryID: evt.DeliveryID,
		Type:       string(evt.Type),
		InstanceID: evt.InstanceID,
		Timestamp:  evt.Timestamp,
		Data:       evt.Data,
	}

	var err error
	switch {
	case h.bus != nil:
		var b []byte
		b, err = json.Marshal(msg)
		if err == nil {
			subject := events.SubjectFor(msg.Type)
			err = h.bus.Publish(ctx, subject, b)
			if err == nil {
				slog.Debug("webhook event published", "delivery_id", msg.DeliveryID, "subject", subject)
			}
		}
	case h.ing != nil:
		err = h.ing.Ingest(ctx, msg)
	default:
		slog.Warn("no bus or ingestor configured; webhook recorded only",
			"delivery_id", evt.DeliveryID,
			"type", evt.Type,
		)
	}

	if err != nil {
		if h.rec != nil {
			if markErr := h.rec.MarkFailed(ctx, evt.DeliveryID, err); markErr != nil {
				slog.Error("mark webhook delivery failed", "delivery_id", evt.DeliveryID, "error", markErr)
			}
		}
		return err
	}

	if h.rec != nil {
		// In bus mode this only means the publish flushed; delivery past NATS is at-most-once.
		// The work is done; a redelivery after this fails is harmless because ingest is idempotent.
		if err := h.rec.MarkProcessed(ctx, evt.DeliveryID); err != nil {
			slog.Error("mark webhook delivery processed", "delivery_id", evt.DeliveryID, "error", err)
		}
	}
	return nil
}
