package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jagadeesh/clerkhook/internal/events"
	"github.com/jagadeesh/clerkhook/pkg/clerkwebhook"
)

// Execer is the slice of *pgxpool.Pool the projection writes through.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UserIngestor keeps the clerk_users projection in step with user and session events.
type UserIngestor struct {
	DB Execer
}

func (i *UserIngestor) Ingest(ctx context.Context, e events.WebhookReceived) error {
	if i == nil || i.DB == nil {
		return nil
	}

	t := clerkwebhook.EventType(e.Type)
	switch {
	case t == clerkwebhook.UserCreated || t == clerkwebhook.UserUpdated:
		var u clerkwebhook.UserData
		if err := json.Unmarshal(e.Data, &u); err != nil {
			return fmt.Errorf("decode user: %w", err)
		}
		return i.upsertUser(ctx, u)

	case t == clerkwebhook.UserDeleted:
		var d clerkwebhook.DeletedObject
		if err := json.Unmarshal(e.Data, &d); err != nil {
			return fmt.Errorf("decode deleted user: %w", err)
		}
		return i.deleteUser(ctx, d.ID, e.Timestamp)

	case t.Family() == "session":
		var s clerkwebhook.SessionData
		if err := json.Unmarshal(e.Data, &s); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		return i.touchSession(ctx, s, e.Timestamp)
	}

	slog.Debug("ingest: event type not projected", "type", e.Type, "delivery_id", e.DeliveryID)
	return nil
}

func (i *UserIngestor) upsertUser(ctx context.Context, u clerkwebhook.UserData) error {
	if strings.TrimSpace(u.ID) == "" {
		return fmt.Errorf("user id is missing")
	}
	// Out-of-order redeliveries must not roll a newer row back, nor revive a user
	// deleted after this update was made.
	_, err := i.DB.Exec(ctx, `
INSERT INTO clerk_users (id, email, username, first_name, last_name, image_url, external_id, created_at_clerk, updated_at_clerk, deleted_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, now())
ON CONFLICT (id) DO UPDATE SET
  email = EXCLUDED.email,
  username = EXCLUDED.username,
  first_name = EXCLUDED.first_name,
  last_name = EXCLUDED.last_name,
  image_url = EXCLUDED.image_url,
  external_id = EXCLUDED.external_id,
  created_at_clerk = COALESCE(clerk_users.created_at_clerk, EXCLUDED.created_at_clerk),
  updated_at_clerk = EXCLUDED.updated_at_clerk,
  deleted_at = NULL,
  updated_at = now()
WHERE (clerk_users.deleted_at IS NULL OR EXCLUDED.updated_at_clerk > clerk_users.deleted_at)
  AND (clerk_users.updated_at_clerk IS NULL
   OR EXCLUDED.updated_at_clerk IS NULL
   OR EXCLUDED.updated_at_clerk >= clerk_users.updated_at_clerk)
`, u.ID, nullIfEmpty(u.PrimaryEmail()), u.Username, u.FirstName, u.LastName, nullIfEmpty(u.ImageURL), u.ExternalID,
		millis(u.CreatedAt), millis(u.UpdatedAt))
	return err
}

func (i *UserIngestor) deleteUser(ctx context.Context, id string, ts int64) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("deleted user id is missing")
	}
	deletedAt := millis(ts)
	if deletedAt == nil {
		now := time.Now().UTC()
		deletedAt = &now
	}
	_, err := i.DB.Exec(ctx, `
INSERT INTO clerk_users (id, updated_at_clerk, deleted_at, updated_at)
VALUES ($1, $2, $2, now())
ON CONFLICT (id) DO UPDATE SET
  updated_at_clerk = GREATEST(clerk_users.updated_at_clerk, EXCLUDED.updated_at_clerk),
  deleted_at = LEAST(clerk_users.deleted_at, EXCLUDED.deleted_at),
  updated_at = now()
`, id, deletedAt)
	return err
}

func (i *UserIngestor) touchSession(ctx context.Context, s clerkwebhook.SessionData, ts int64) error {
	if strings.TrimSpace(s.UserID) == "" {
		return nil
	}
	at := millis(s.UpdatedAt)
	if at == nil {
		at = millis(ts)
	}
	_, err := i.DB.Exec(ctx, `
INSERT INTO clerk_users (id, last_session_at, last_session_status, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
  last_session_at = EXCLUDED.last_session_at,
  last_session_status = EXCLUDED.last_session_status,
  updated_at = now()
WHERE clerk_users.last_session_at IS NULL
   OR EXCLUDED.last_session_at IS NULL
   OR EXCLUDED.last_session_at >= clerk_users.last_session_at
`, s.UserID, at, nullIfEmpty(s.Status))
	return err
}

func millis(ms int64) *time.Time {
	if ms <= 0 {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
