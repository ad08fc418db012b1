package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jagadeesh/clerkhook/internal/events"
)

type Ingestor interface {
	Ingest(ctx context.Context, e events.WebhookReceived) error
}

// WebhookConsumer applies published webhook events to the projection.
type WebhookConsumer struct {
	Sub    *nats.Subscription
	Ingest Ingestor
	// Timeout bounds each Ingest call; zero means 30s.
	Timeout time.Duration
}

func (c *WebhookConsumer) Subscribe(ctx context.Context, nc *nats.Conn, queue string) error {
	if nc == nil {
		return nil
	}
	if queue == "" {
		queue = "clerkhook-workers"
	}

	sub, err := nc.QueueSubscribe(events.SubjectAll, queue, func(msg *nats.Msg) {
		c.handle(ctx, msg.Subject, msg.Data)
	})
	if err != nil {
		return err
	}
	c.Sub = sub

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()

	return nil
}

func (c *WebhookConsumer) handle(ctx context.Context, subject string, data []byte) {
	var e events.WebhookReceived
	if err := json.Unmarshal(data, &e); err != nil {
		slog.Error("bad webhook event", "subject", subject, "error", err)
		return
	}
	if c.Ingest == nil {
		return
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := c.Ingest.Ingest(ctx, e); err != nil {
		slog.Error("webhook ingest failed",
			"delivery_id", e.DeliveryID,
			"type", e.Type,
			"error", err,
		)
		return
	}
	slog.Debug("webhook ingested", "delivery_id", e.DeliveryID, "type", e.Type)
}
