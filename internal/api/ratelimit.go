package api

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimit throttles the routes it guards with one shared token bucket.
// Rejections answer 429 with Retry-After so Svix backs off and redelivers.
func RateLimit(perSecond float64, burst int) fiber.Handler {
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(c *fiber.Ctx) error {
		if limiter.Allow() {
			return c.Next()
		}
		slog.Warn("webhook rate limited", "path", c.Path(), "remote_ip", c.IP())
		retry := 1
		if perSecond > 0 && perSecond < 1 {
			retry = int(1/perSecond + 0.5)
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
	}
}
