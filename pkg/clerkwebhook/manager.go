package clerkwebhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

const DefaultPath = "/webhook"

// Response bodies. Kept generic so rejections give no oracle into verification.
const (
	MessageProcessed = "Webhook processed successfully"
	MessageUnhandled = "Unhandled webhook type"
	ErrorFailed      = "Webhook processing failed"
	ErrorHandler     = "Webhook handler failed"
)

// Handler consumes one verified event. A returned error makes the sender retry.
type Handler func(ctx context.Context, evt Event) error

type Options struct {
	Handlers  map[EventType]Handler
	SecretKey string
	// Path is the mount point; defaults to DefaultPath.
	Path   string
	Logger *slog.Logger
}

// Manager verifies inbound deliveries and routes them to handlers by type.
// All fields are fixed at construction, so concurrent requests share it without locking.
type Manager struct {
	handlers map[EventType]Handler
	verifier *Verifier
	path     string
	logger   *slog.Logger
}

func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "clerkwebhook")

	handlers := make(map[EventType]Handler, len(opts.Handlers))
	for t, h := range opts.Handlers {
		if h == nil {
			continue
		}
		handlers[t] = h
	}

	return &Manager{
		handlers: handlers,
		verifier: NewVerifier(opts.SecretKey, logger),
		path:     normalizePath(opts.Path),
		logger:   logger,
	}
}

func (m *Manager) Path() string { return m.path }

// Handles reports whether a handler is registered for t.
func (m *Manager) Handles(t EventType) bool {
	_, ok := m.handlers[t]
	return ok
}

// ConfigErr exposes a missing or invalid secret so hosts can warn at startup.
func (m *Manager) ConfigErr() error {
	return m.verifier.Err()
}

// Register mounts GET {path}/health and POST {path} on r.
func (m *Manager) Register(r fiber.Router, middleware ...fiber.Handler) {
	r.Get(strings.TrimSuffix(m.path, "/")+"/health", m.Health())
	post := append(append([]fiber.Handler{}, middleware...), m.Receive())
	r.Post(m.path, post...)
}

func (m *Manager) Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.Status(fiber.StatusOK).SendString("ok")
	}
}

func (m *Manager) Receive() fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := make(map[string]string, 8)
		c.Request().Header.VisitAll(func(k, v []byte) {
			headers[strings.ToLower(string(k))] = string(v)
		})

		evt, err := m.verifier.Verify(c.Body(), headers)
		if err != nil {
			if errors.Is(err, ErrConfiguration) {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrorFailed})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ErrorFailed})
		}

		handled, err := m.Dispatch(c.UserContext(), evt)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": ErrorHandler})
		}
		if !handled {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": MessageUnhandled})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": MessageProcessed})
	}
}

// Dispatch invokes the handler registered for evt.Type and waits for it.
// handled is false when no handler exists; that is not an error.
func (m *Manager) Dispatch(ctx context.Context, evt Event) (handled bool, err error) {
	h, ok := m.handlers[evt.Type]
	if !ok {
		m.logger.Warn("unhandled webhook type", "type", evt.Type, "delivery_id", evt.DeliveryID)
		return false, nil
	}

	start := time.Now()
	if err := invoke(ctx, h, evt); err != nil {
		m.logger.Error("webhook handler failed",
			"type", evt.Type,
			"delivery_id", evt.DeliveryID,
			"duration", time.Since(start),
			"error", err,
		)
		return true, err
	}
	m.logger.Info("webhook processed",
		"type", evt.Type,
		"delivery_id", evt.DeliveryID,
		"duration", time.Since(start),
	)
	return true, nil
}

func invoke(ctx context.Context, h Handler, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrHandler, r)
		}
	}()
	if err := h(ctx, evt); err != nil {
		return fmt.Errorf("%w: %w", ErrHandler, err)
	}
	return nil
}

// WithTimeout bounds h. The router itself never times out a handler.
func WithTimeout(h Handler, d time.Duration) Handler {
	if d <= 0 {
		return h
	}
	return func(ctx context.Context, evt Event) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return h(ctx, evt)
	}
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPath
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}
