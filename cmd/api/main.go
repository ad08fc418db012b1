package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jagadeesh/clerkhook/internal/api"
	"github.com/jagadeesh/clerkhook/internal/bus"
	"github.com/jagadeesh/clerkhook/internal/bus/natsbus"
	"github.com/jagadeesh/clerkhook/internal/config"
	"github.com/jagadeesh/clerkhook/internal/cryptox"
	"github.com/jagadeesh/clerkhook/internal/db"
	"github.com/jagadeesh/clerkhook/internal/migrate"
	"github.com/jagadeesh/clerkhook/internal/store"
)

func main() {
	config.LoadDotenv()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	if cfg.SigningSecret == "" {
		slog.Warn("SIGNING_SECRET not set; webhook deliveries will be rejected until it is configured")
	}

	var database *db.DB
	var eventStore *store.EventStore
	if cfg.DBURL == "" {
		if cfg.Env != "dev" {
			slog.Error("DB_URL is required in non-dev environments")
			os.Exit(1)
		}
		slog.Warn("DB_URL not set; deliveries will not be recorded or projected")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		d, err := db.Connect(ctx, cfg.DBURL)
		cancel()
		if err != nil {
			slog.Error("db connect failed", "error", err)
			os.Exit(1)
		}
		database = d
		defer database.Close()

		if cfg.AutoMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			err := migrate.Up(ctx, database.Pool)
			cancel()
			if err != nil {
				slog.Error("auto-migrate failed", "error", err)
				os.Exit(1)
			}
			slog.Info("auto-migrate complete")
		}

		eventStore = &store.EventStore{DB: database.Pool}
		if cfg.PayloadEncKeyB64 != "" {
			key, err := cryptox.KeyFromB64(cfg.PayloadEncKeyB64)
			if err != nil {
				slog.Error("invalid payload encryption key", "error", err)
				os.Exit(1)
			}
			eventStore.Key = key
		}
	}

	var eventBus bus.Bus
	if cfg.NATSURL != "" {
		b, err := natsbus.Connect(cfg.NATSURL, "clerkhook-api")
		if err != nil {
			slog.Error("nats connect failed", "error", err)
			os.Exit(1)
		}
		eventBus = b
		defer eventBus.Close()
	}

	app := api.New(cfg, api.Deps{DB: database, Bus: eventBus, Store: eventStore, Logger: logger})

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server",
			"addr", cfg.HTTPAddr,
			"webhook_path", cfg.WebhookPath,
			"webhook_events", len(cfg.WebhookEvents),
		)
		errCh <- app.Listen(cfg.HTTPAddr)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-errCh:
		// Fiber returns nil only on clean shutdown; treat any error as fatal.
		slog.Error("http server exited", "error", err)
	}

	// Handlers are awaited in the request path, so give in-flight deliveries time to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := api.Shutdown(ctx, app); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	slog.Info("shutdown complete")
}
