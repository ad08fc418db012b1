package clerkwebhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"
)

// Signature transport headers, lowercase.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// Svix also delivers the same values under unbranded names.
var headerFallbacks = map[string]string{
	HeaderID:        "webhook-id",
	HeaderTimestamp: "webhook-timestamp",
	HeaderSignature: "webhook-signature",
}

// Verifier checks Svix signatures for one signing secret.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	wh     *svix.Webhook
	err    error
	logger *slog.Logger
}

// NewVerifier never fails: secret problems surface as ErrConfiguration on Verify,
// so a misconfigured deployment still answers every request.
func NewVerifier(secret string, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Verifier{logger: logger}
	if strings.TrimSpace(secret) == "" {
		v.err = ErrConfiguration
		return v
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		// err may echo the secret; keep it out of the chain.
		v.err = fmt.Errorf("%w: signing secret is not a valid svix secret", ErrConfiguration)
		return v
	}
	v.wh = wh
	return v
}

// Verify checks the signature over the exact received bytes, then parses the event.
// headers must be keyed by lowercase names.
func Verify(rawBody []byte, headers map[string]string, secret string) (Event, error) {
	return NewVerifier(secret, nil).Verify(rawBody, headers)
}

// Err reports the configuration problem, if any, without needing a request.
func (v *Verifier) Err() error {
	return v.err
}

func (v *Verifier) Verify(rawBody []byte, headers map[string]string) (Event, error) {
	if v.err != nil {
		v.logger.Error("webhook signing secret is not configured; set SIGNING_SECRET")
		return Event{}, v.err
	}

	id := lookupHeader(headers, HeaderID)
	ts := lookupHeader(headers, HeaderTimestamp)
	sig := lookupHeader(headers, HeaderSignature)
	if id == "" || ts == "" || sig == "" {
		v.logger.Warn("webhook rejected: missing svix headers",
			"has_id", id != "",
			"has_timestamp", ts != "",
			"has_signature", sig != "",
		)
		return Event{}, fmt.Errorf("%w: required signature headers absent", ErrMalformedRequest)
	}

	h := http.Header{}
	h.Set(HeaderID, id)
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderSignature, sig)
	if err := v.wh.Verify(rawBody, h); err != nil {
		v.logger.Warn("webhook signature verification failed",
			"delivery_id", id,
			"body_size", len(rawBody),
			"error", err,
		)
		return Event{}, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	// Only now is the body trusted enough to parse.
	var evt Event
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		v.logger.Warn("verified webhook body is not valid json", "delivery_id", id, "error", err)
		return Event{}, fmt.Errorf("%w: payload is not an event: %w", ErrMalformedRequest, err)
	}
	if strings.TrimSpace(string(evt.Type)) == "" {
		v.logger.Warn("verified webhook has no event type", "delivery_id", id)
		return Event{}, fmt.Errorf("%w: payload has no type", ErrMalformedRequest)
	}

	evt.DeliveryID = id
	if secs, err := strconv.ParseInt(ts, 10, 64); err == nil {
		evt.DeliveredAt = time.Unix(secs, 0).UTC()
	}
	evt.Raw = bytes.Clone(rawBody)

	v.logger.Debug("webhook verified",
		"delivery_id", id,
		"type", evt.Type,
		"instance_id", evt.InstanceID,
	)
	return evt, nil
}

// VerifyHTTP is Verify for callers holding a net/http header set.
func (v *Verifier) VerifyHTTP(rawBody []byte, header http.Header) (Event, error) {
	m := make(map[string]string, 3)
	for name, fallback := range headerFallbacks {
		if val := strings.TrimSpace(header.Get(name)); val != "" {
			m[name] = val
		} else if val := strings.TrimSpace(header.Get(fallback)); val != "" {
			m[name] = val
		}
	}
	return v.Verify(rawBody, m)
}

func lookupHeader(headers map[string]string, name string) string {
	if v := strings.TrimSpace(headers[name]); v != "" {
		return v
	}
	return strings.TrimSpace(headers[headerFallbacks[name]])
}
