package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/suspectuso/sticker-shop/internal/admin"
	"github.com/suspectuso/sticker-shop/internal/backend"
	"github.com/suspectuso/sticker-shop/internal/config"
	"github.com/suspectuso/sticker-shop/internal/session"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	cfg := config.Load()

	// Logs go to stderr; stdout is the console
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(log)

	store, err := session.NewSQLite(cfg.SessionDBPath)
	if err != nil {
		log.Error("init session store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Debug("session store initialized", "path", cfg.SessionDBPath)

	api := backend.NewClient(cfg.APIBaseURL, store, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console := admin.NewConsole(os.Stdin, os.Stdout)
	dash := admin.New(api, store, console, cfg.AdminUsername, log)

	if err := console.Run(ctx, dash); err != nil && ctx.Err() == nil {
		log.Error("console", "error", err)
		os.Exit(1)
	}
}
