package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	svix "github.com/svix/svix-webhooks/go"

	"github.com/jagadeesh/clerkhook/internal/auth"
	"github.com/jagadeesh/clerkhook/internal/config"
	"github.com/jagadeesh/clerkhook/pkg/clerkwebhook"
)

const testSecret = "whsec_dGVzdC1zaWduaW5nLXNlY3JldA=="

type capturingBus struct {
	subjects []string
}

func (b *capturingBus) Publish(ctx context.Context, subject string, data []byte) error {
	b.subjects = append(b.subjects, subject)
	return nil
}

func (b *capturingBus) Close() {}

func testConfig() config.Config {
	return config.Config{
		SigningSecret: testSecret,
		WebhookPath:   "/webhook",
		WebhookEvents: []clerkwebhook.EventType{clerkwebhook.UserCreated, clerkwebhook.UserUpdated},
		JWTSecret:     "jwt-secret",
	}
}

func signedRequest(t *testing.T, path string, body []byte) *http.Request {
	t.Helper()
	wh, err := svix.NewWebhook(testSecret)
	if err != nil {
		t.Fatalf("NewWebhook: %v", err)
	}
	now := time.Now()
	sig, err := wh.Sign("msg_api", now, body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("svix-id", "msg_api")
	req.Header.Set("svix-timestamp", strconv.FormatInt(now.Unix(), 10))
	req.Header.Set("svix-signature", sig)
	return req
}

func doJSON(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestAPI_WebhookPublishesToBus(t *testing.T) {
	b := &capturingBus{}
	app := New(testConfig(), Deps{Bus: b})

	body := []byte(`{"type":"user.created","data":{"id":"u1"}}`)
	status, resp := doJSON(t, app, signedRequest(t, "/webhook", body))
	if status != http.StatusOK || resp["message"] != clerkwebhook.MessageProcessed {
		t.Fatalf("unexpected response: %d %#v", status, resp)
	}
	if len(b.subjects) != 1 || b.subjects[0] != "clerk.webhook.user.created" {
		t.Fatalf("unexpected publishes: %v", b.subjects)
	}
}

func TestAPI_UnconfiguredTypeIsUnhandled(t *testing.T) {
	b := &capturingBus{}
	app := New(testConfig(), Deps{Bus: b})

	body := []byte(`{"type":"session.revoked","data":{"id":"sess_1"}}`)
	status, resp := doJSON(t, app, signedRequest(t, "/webhook", body))
	if status != http.StatusOK || resp["message"] != clerkwebhook.MessageUnhandled {
		t.Fatalf("unexpected response: %d %#v", status, resp)
	}
	if len(b.subjects) != 0 {
		t.Fatalf("unhandled type must not be published")
	}
}

func TestAPI_HealthAndReady(t *testing.T) {
	app := New(testConfig(), Deps{})

	for _, path := range []string{"/health", "/ready", "/webhook/health"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		if err != nil {
			t.Fatalf("app.Test %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}

func TestAPI_RootWebhookPathFallsBackToDefault(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookPath = "/"
	b := &capturingBus{}
	app := New(cfg, Deps{Bus: b})

	body := []byte(`{"type":"user.created","data":{"id":"u1"}}`)
	status, resp := doJSON(t, app, signedRequest(t, "/webhook", body))
	if status != http.StatusOK || resp["message"] != clerkwebhook.MessageProcessed {
		t.Fatalf("unexpected response: %d %#v", status, resp)
	}

	status, resp = doJSON(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	if status != http.StatusOK || resp["ok"] != true {
		t.Fatalf("app health must stay reachable: %d %#v", status, resp)
	}

	req := httptest.NewRequest(http.MethodGet, "/webhook/health", nil)
	res, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer res.Body.Close()
	got, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || string(got) != "ok" {
		t.Fatalf("webhook health: %d %q", res.StatusCode, got)
	}
}

func TestAPI_AdminRequiresToken(t *testing.T) {
	app := New(testConfig(), Deps{})

	status, _ := doJSON(t, app, httptest.NewRequest(http.MethodGet, "/admin/events", nil))
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}

	tok, err := auth.IssueJWT("jwt-secret", "ops", "admin", time.Minute)
	if err != nil {
		t.Fatalf("IssueJWT: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin/events", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	status, resp := doJSON(t, app, req)
	if status != http.StatusServiceUnavailable || resp["error"] != "db_not_configured" {
		t.Fatalf("expected 503 db_not_configured, got %d %#v", status, resp)
	}
}

func TestAPI_RateLimitedWebhook(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookRateLimit = 0.001
	cfg.WebhookRateBurst = 1
	app := New(cfg, Deps{Bus: &capturingBus{}})

	body := []byte(`{"type":"user.created","data":{"id":"u1"}}`)
	if status, _ := doJSON(t, app, signedRequest(t, "/webhook", body)); status != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", status)
	}
	if status, _ := doJSON(t, app, signedRequest(t, "/webhook", body)); status != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", status)
	}
}
