package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/jagadeesh/clerkhook/internal/config"
	"github.com/jagadeesh/clerkhook/internal/db"
	"github.com/jagadeesh/clerkhook/internal/migrate"
)

func main() {
	down := flag.Int("down", 0, "roll back this many migrations instead of applying pending ones")
	flag.Parse()

	config.LoadDotenv()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	d, err := db.Connect(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer d.Close()

	if *down > 0 {
		if err := migrate.Down(ctx, d.Pool, *down); err != nil {
			slog.Error("migrate down failed", "error", err, "steps", *down)
			os.Exit(1)
		}
		slog.Info("migrations rolled back", "steps", *down)
		return
	}

	if err := migrate.Up(ctx, d.Pool); err != nil {
		slog.Error("migrate up failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations applied")
}
