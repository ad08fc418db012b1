package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jagadeesh/clerkhook/internal/cryptox"
	"github.com/jagadeesh/clerkhook/pkg/clerkwebhook"
)

var ErrNotFound = errors.New("webhook event not found")

// Querier is the part of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventStore keeps an audit row per Svix delivery, keyed by svix-id.
type EventStore struct {
	DB Querier
	// Key seals stored payloads with AES-256-GCM when non-nil.
	Key []byte
}

type Record struct {
	ID          uuid.UUID  `json:"id"`
	DeliveryID  string     `json:"delivery_id"`
	Type        string     `json:"type"`
	InstanceID  *string    `json:"instance_id,omitempty"`
	OccurredAt  *time.Time `json:"occurred_at,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	Attempts    int        `json:"attempts"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
}

// Record stores a delivery or bumps its attempt count on redelivery.
// processed reports whether an earlier attempt already completed.
func (s *EventStore) Record(ctx context.Context, evt clerkwebhook.Event) (processed bool, err error) {
	if s == nil || s.DB == nil {
		return false, fmt.Errorf("db not configured")
	}
	if evt.DeliveryID == "" {
		return false, fmt.Errorf("delivery id is required")
	}

	payload, sealed, err := s.seal(evt.DeliveryID, evt.Raw)
	if err != nil {
		return false, fmt.Errorf("seal payload: %w", err)
	}

	var occurredAt *time.Time
	if t := evt.OccurredAt(); !t.IsZero() {
		occurredAt = &t
	}

	err = s.DB.QueryRow(ctx, `
INSERT INTO clerk_webhook_events (id, delivery_id, event_type, instance_id, occurred_at, payload, payload_sealed)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (delivery_id) DO UPDATE SET
  attempts = clerk_webhook_events.attempts + 1,
  last_error = NULL
RETURNING processed_at IS NOT NULL
`, uuid.New(), evt.DeliveryID, string(evt.Type), nullIfEmpty(evt.InstanceID), occurredAt, payload, sealed).Scan(&processed)
	if err != nil {
		return false, err
	}
	return processed, nil
}

func (s *EventStore) MarkProcessed(ctx context.Context, deliveryID string) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("db not configured")
	}
	_, err := s.DB.Exec(ctx, `
UPDATE clerk_webhook_events
SET processed_at = now(), last_error = NULL
WHERE delivery_id = $1
`, deliveryID)
	return err
}

func (s *EventStore) MarkFailed(ctx context.Context, deliveryID string, cause error) error {
	if s == nil || s.DB == nil {
		return fmt.Errorf("db not configured")
	}
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	_, err := s.DB.Exec(ctx, `
UPDATE clerk_webhook_events
SET last_error = $2
WHERE delivery_id = $1
`, deliveryID, truncate(msg, 1000))
	return err
}

// Recent lists the newest deliveries, optionally filtered by type.
func (s *EventStore) Recent(ctx context.Context, eventType string, limit int) ([]Record, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("db not configured")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.DB.Query(ctx, `
SELECT id, delivery_id, event_type, instance_id, occurred_at, received_at, attempts, processed_at, last_error
FROM clerk_webhook_events
WHERE ($1 = '' OR event_type = $1)
ORDER BY received_at DESC
LIMIT $2
`, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.DeliveryID, &r.Type, &r.InstanceID, &r.OccurredAt, &r.ReceivedAt, &r.Attempts, &r.ProcessedAt, &r.LastError); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Payload returns the verified bytes of a delivery, opening them if sealed.
func (s *EventStore) Payload(ctx context.Context, deliveryID string) ([]byte, error) {
	if s == nil || s.DB == nil {
		return nil, fmt.Errorf("db not configured")
	}
	var payload []byte
	var sealed bool
	err := s.DB.QueryRow(ctx, `
SELECT payload, payload_sealed
FROM clerk_webhook_events
WHERE delivery_id = $1
`, deliveryID).Scan(&payload, &sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !sealed {
		return payload, nil
	}
	if s.Key == nil {
		return nil, fmt.Errorf("payload is sealed but no key is configured")
	}
	return cryptox.DecryptAESGCM(s.Key, payload, []byte(deliveryID))
}

func (s *EventStore) seal(deliveryID string, raw []byte) ([]byte, bool, error) {
	if s.Key == nil {
		return raw, false, nil
	}
	b, err := cryptox.EncryptAESGCM(s.Key, raw, []byte(deliveryID))
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
