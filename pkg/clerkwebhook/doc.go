// Package clerkwebhook receives Clerk webhooks delivered through Svix.
//
// A Manager mounts two routes on any fiber.Router: a liveness probe at
// {path}/health and the POST endpoint at {path}. Each POST is verified
// against the exact received bytes with the Svix primitive, parsed into an
// Event only after the signature holds, and passed to the Handler
// registered for its type. Types with no handler are acknowledged with 200
// so the sender stops retrying them.
package clerkwebhook
