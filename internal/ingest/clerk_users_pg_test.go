package ingest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jagadeesh/clerkhook/internal/db"
	"github.com/jagadeesh/clerkhook/internal/events"
	"github.com/jagadeesh/clerkhook/internal/migrate"
)

// testPool connects to DB_URL and applies migrations; the test is skipped without it.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("DB_URL")
	if url == "" {
		t.Skip("DB_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	d, err := db.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(d.Close)
	if err := migrate.Up(ctx, d.Pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d.Pool
}

func userEvent(typ, id, name string, updatedAt int64) events.WebhookReceived {
	return events.WebhookReceived{
		Type:      typ,
		Timestamp: updatedAt,
		Data: []byte(fmt.Sprintf(`{"id":%q,"first_name":%q,"created_at":%d,"updated_at":%d}`,
			id, name, updatedAt-1000, updatedAt)),
	}
}

type userRow struct {
	firstName     *string
	deleted       bool
	sessionStatus *string
}

func readUser(t *testing.T, pool *pgxpool.Pool, id string) userRow {
	t.Helper()
	var r userRow
	err := pool.QueryRow(context.Background(),
		`SELECT first_name, deleted_at IS NOT NULL, last_session_status FROM clerk_users WHERE id = $1`, id).
		Scan(&r.firstName, &r.deleted, &r.sessionStatus)
	if err != nil {
		t.Fatalf("read user %s: %v", id, err)
	}
	return r
}

func TestUserProjectionPostgres(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	i := &UserIngestor{DB: pool}
	id := "user_" + uuid.NewString()
	base := time.Now().UnixMilli()

	if err := i.Ingest(ctx, userEvent("user.created", id, "Ada", base)); err != nil {
		t.Fatalf("created: %v", err)
	}
	if err := i.Ingest(ctx, userEvent("user.updated", id, "Ada L.", base+2000)); err != nil {
		t.Fatalf("updated: %v", err)
	}

	// An older update arriving late must not roll the row back.
	if err := i.Ingest(ctx, userEvent("user.updated", id, "Stale", base+1000)); err != nil {
		t.Fatalf("stale update: %v", err)
	}
	if r := readUser(t, pool, id); r.firstName == nil || *r.firstName != "Ada L." {
		t.Fatalf("stale update rolled the row back: %v", r.firstName)
	}

	session := events.WebhookReceived{
		Type:      "session.created",
		Timestamp: base + 2500,
		Data:      []byte(fmt.Sprintf(`{"id":"sess_1","user_id":%q,"status":"active","updated_at":%d}`, id, base+2500)),
	}
	if err := i.Ingest(ctx, session); err != nil {
		t.Fatalf("session: %v", err)
	}
	if r := readUser(t, pool, id); r.sessionStatus == nil || *r.sessionStatus != "active" {
		t.Fatalf("expected last_session_status active, got %v", r.sessionStatus)
	}

	deleted := events.WebhookReceived{
		Type:      "user.deleted",
		Timestamp: base + 3000,
		Data:      []byte(fmt.Sprintf(`{"id":%q,"object":"user","deleted":true}`, id)),
	}
	if err := i.Ingest(ctx, deleted); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	r := readUser(t, pool, id)
	if !r.deleted || r.firstName == nil {
		t.Fatalf("expected soft delete keeping the row, got %+v", r)
	}

	// An update made before the deletion must not revive the user.
	if err := i.Ingest(ctx, userEvent("user.updated", id, "Revived", base+2800)); err != nil {
		t.Fatalf("late update: %v", err)
	}
	if r := readUser(t, pool, id); !r.deleted || *r.firstName == "Revived" {
		t.Fatalf("late update revived a deleted user: %+v", r)
	}
}
