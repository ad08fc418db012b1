package bus

import "context"

// Bus carries verified webhook events from the API to workers.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}
