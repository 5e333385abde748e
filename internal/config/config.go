package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultAPIBaseURL = "http://localhost:8000"

type Config struct {
	// Backend
	APIBaseURL string

	// Telegram
	BotToken           string
	CountdownEditEvery time.Duration
	SessionIdleTTL     time.Duration

	// Admin
	AdminUsername string
	SessionDBPath string

	// TonAPI
	TonAPIKey      string
	TonAPIBaseURL  string
	TonLookupLimit int

	// Logging
	LogLevel slog.Level
}

func Load() *Config {
	return &Config{
		// Backend
		APIBaseURL: strings.TrimSuffix(getEnv("API_BASE_URL", getEnv("VITE_API_URL", defaultAPIBaseURL)), "/"),

		// Telegram
		BotToken:           getEnv("BOT_TOKEN", ""),
		CountdownEditEvery: getEnvDuration("COUNTDOWN_EDIT_EVERY", 5*time.Second),
		SessionIdleTTL:     getEnvDuration("SESSION_IDLE_TTL", time.Hour),

		// Admin
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		SessionDBPath: getEnv("SESSION_DB_PATH", "./admin-session.db"),

		// TonAPI
		TonAPIKey:      getEnv("TONAPI_API_KEY", ""),
		TonAPIBaseURL:  strings.TrimSuffix(getEnv("TONAPI_BASE_URL", "https://tonapi.io/v2"), "/"),
		TonLookupLimit: getEnvInt("TONAPI_LOOKUP_LIMIT", 20),

		// Logging
		LogLevel: getEnvLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	if val := os.Getenv(key); val != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(val)); err == nil {
			return lvl
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
