package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/jagadeesh/clerkhook/internal/store"
)

type fakeReader struct {
	records   []store.Record
	payloads  map[string][]byte
	lastType  string
	lastLimit int
}

func (f *fakeReader) Recent(ctx context.Context, eventType string, limit int) ([]store.Record, error) {
	f.lastType = eventType
	f.lastLimit = limit
	return f.records, nil
}

func (f *fakeReader) Payload(ctx context.Context, deliveryID string) ([]byte, error) {
	p, ok := f.payloads[deliveryID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return p, nil
}

func adminApp(r EventReader) *fiber.App {
	h := NewAdminEventsHandler(r)
	app := fiber.New()
	app.Get("/admin/events", h.List())
	app.Get("/admin/events/:delivery_id/payload", h.Payload())
	return app
}

func TestAdminEvents_List(t *testing.T) {
	r := &fakeReader{records: []store.Record{{DeliveryID: "msg_1", Type: "user.created", Attempts: 2}}}
	app := adminApp(r)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/events?type=user.created&limit=5", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Events []store.Record `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].Attempts != 2 {
		t.Fatalf("unexpected events: %#v", body.Events)
	}
	if r.lastType != "user.created" || r.lastLimit != 5 {
		t.Fatalf("filters not passed through: %q %d", r.lastType, r.lastLimit)
	}
}

func TestAdminEvents_Payload(t *testing.T) {
	app := adminApp(&fakeReader{payloads: map[string][]byte{"msg_1": []byte(`{"type":"user.created"}`)}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/events/msg_1/payload", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(raw) != `{"type":"user.created"}` {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, raw)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/admin/events/msg_404/payload", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminEvents_NoStore(t *testing.T) {
	app := adminApp(nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/admin/events", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}
