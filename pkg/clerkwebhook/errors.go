package clerkwebhook

import "errors"

// Failure classes. Returned errors wrap exactly one of these; test with errors.Is.
var (
	// ErrConfiguration is a deployment fault: every request fails until the secret is fixed.
	ErrConfiguration = errors.New("signing secret not configured")
	// ErrMalformedRequest means the sender omitted signature headers or sent a non-event body.
	ErrMalformedRequest = errors.New("malformed webhook request")
	// ErrAuthentication means the signature did not verify. Details stay in logs.
	ErrAuthentication = errors.New("signature verification failed")
	// ErrHandler wraps failures (and panics) raised by a registered handler.
	ErrHandler = errors.New("webhook handler failed")
)
