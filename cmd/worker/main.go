package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jagadeesh/clerkhook/internal/bus/natsbus"
	"github.com/jagadeesh/clerkhook/internal/config"
	"github.com/jagadeesh/clerkhook/internal/db"
	"github.com/jagadeesh/clerkhook/internal/ingest"
	"github.com/jagadeesh/clerkhook/internal/worker"
)

func main() {
	config.LoadDotenv()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DBURL == "" {
		slog.Error("DB_URL is required")
		os.Exit(1)
	}
	d, err := db.Connect(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer d.Close()

	if cfg.NATSURL == "" {
		slog.Error("NATS_URL is required to run workers")
		os.Exit(1)
	}

	b, err := natsbus.Connect(cfg.NATSURL, "clerkhook-worker")
	if err != nil {
		slog.Error("nats connect failed", "error", err)
		os.Exit(1)
	}
	defer b.Close()

	consumer := &worker.WebhookConsumer{Ingest: &ingest.UserIngestor{DB: d.Pool}}
	if err := consumer.Subscribe(ctx, b.Conn(), cfg.NATSQueue); err != nil {
		slog.Error("subscribe failed", "error", err)
		os.Exit(1)
	}

	slog.Info("worker started", "queue", cfg.NATSQueue)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("worker shutting down")
	cancel()
	time.Sleep(300 * time.Millisecond)
}
