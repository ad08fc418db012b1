package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jagadeesh/clerkhook/pkg/clerkwebhook"
)

// DefaultWebhookEvents is what gets a handler when WEBHOOK_EVENTS is unset.
const DefaultWebhookEvents = "user.*,session.*"

type Config struct {
	Env      string
	HTTPAddr string
	Log      string

	// Clerk/Svix signing secret ("whsec_..."). Never logged.
	SigningSecret string
	WebhookPath   string
	WebhookEvents []clerkwebhook.EventType

	// Ingress throttling for the webhook POST. Zero rate disables it.
	WebhookRateLimit float64
	WebhookRateBurst int

	DBURL       string
	AutoMigrate bool

	NATSURL   string
	NATSQueue string

	// Protects the admin endpoints.
	JWTSecret string

	// Seals stored payloads when set. Must be 32 bytes base64 (AES-256-GCM key).
	PayloadEncKeyB64 string
}

func Load() Config {
	env := getEnv("APP_ENV", "dev")
	logLevel := getEnv("LOG_LEVEL", "info")

	// Prefer HTTP_ADDR if provided, otherwise build it from PORT.
	httpAddr := os.Getenv("HTTP_ADDR")
	if strings.TrimSpace(httpAddr) == "" {
		port := getEnv("PORT", "8080")
		httpAddr = ":" + port
	}

	rawEvents := getEnv("WEBHOOK_EVENTS", DefaultWebhookEvents)
	webhookEvents, err := clerkwebhook.ParseEventTypes(rawEvents)
	if err != nil {
		slog.Warn("invalid WEBHOOK_EVENTS; using default", "value", rawEvents, "error", err)
		webhookEvents, _ = clerkwebhook.ParseEventTypes(DefaultWebhookEvents)
	}

	return Config{
		Env:      env,
		HTTPAddr: httpAddr,
		Log:      logLevel,

		SigningSecret: getEnv("SIGNING_SECRET", ""),
		WebhookPath:   getEnv("WEBHOOK_PATH", clerkwebhook.DefaultPath),
		WebhookEvents: webhookEvents,

		WebhookRateLimit: getEnvFloat("WEBHOOK_RATE_LIMIT", 0),
		WebhookRateBurst: getEnvInt("WEBHOOK_RATE_BURST", 20),

		DBURL:       getEnv("DB_URL", ""),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", false),

		NATSURL:   getEnv("NATS_URL", ""),
		NATSQueue: getEnv("NATS_QUEUE", "clerkhook-workers"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		PayloadEncKeyB64: getEnv("PAYLOAD_ENC_KEY_B64", ""),
	}
}

func (c Config) LogLevel() slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(c.Log)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		// Allow numeric levels for easy tweaking (-4 debug, 0 info, 4 warn, 8 error).
		if n, err := strconv.Atoi(c.Log); err == nil {
			return slog.Level(n)
		}
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}
