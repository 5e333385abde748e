package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/suspectuso/sticker-shop/internal/backend"
	"github.com/suspectuso/sticker-shop/internal/config"
	"github.com/suspectuso/sticker-shop/internal/telegram"
	"github.com/suspectuso/sticker-shop/internal/tonapi"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found")
	}

	// Load config
	cfg := config.Load()

	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(log)

	if cfg.BotToken == "" {
		log.Error("BOT_TOKEN is required")
		os.Exit(1)
	}

	// Buyers are anonymous; no bearer token is ever attached
	api := backend.NewClient(cfg.APIBaseURL, nil, log)
	log.Info("backend client initialized", "base_url", cfg.APIBaseURL)

	// TonAPI powers "Find my transfer"
	var tonAPI *tonapi.Client
	if cfg.TonAPIBaseURL != "" {
		tonAPI = tonapi.NewClient(cfg.TonAPIBaseURL, cfg.TonAPIKey)
		log.Info("tonapi client initialized", "base_url", cfg.TonAPIBaseURL)
	}

	bot, err := telegram.New(cfg, api, tonAPI, log)
	if err != nil {
		log.Error("init telegram bot", "error", err)
		os.Exit(1)
	}
	log.Info("telegram bot initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	log.Info("starting bot polling...")
	bot.Start(ctx)
}
