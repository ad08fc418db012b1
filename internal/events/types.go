package events

import (
	"encoding/json"
	"strings"
)

const (
	SubjectPrefix = "clerk.webhook."
	// SubjectAll matches every webhook subject.
	SubjectAll = SubjectPrefix + ">"
)

// WebhookReceived is what the API publishes after a delivery verified.
type WebhookReceived struct {
	DeliveryID string          `json:"delivery_id"`
	Type       string          `json:"type"`
	InstanceID string          `json:"instance_id,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// SubjectFor maps an event type to its subject, e.g. clerk.webhook.user.created.
// NATS tokens are dot separated, so the family/action split carries over.
func SubjectFor(eventType string) string {
	t := strings.TrimSpace(eventType)
	if t == "" {
		t = "unknown"
	}
	return SubjectPrefix + strings.NewReplacer(" ", "_", "*", "_", ">", "_").Replace(t)
}
