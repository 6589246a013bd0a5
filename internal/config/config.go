// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// HTTPAddr is the listen address of the companion API.
	HTTPAddr string

	// RedisURL addresses the checkpoint and history store.
	RedisURL      string
	RedisPoolSize int

	// Model proxy settings.
	ProxyBaseURL string
	ProxyAPIKey  string
	ProxyModel   string

	// HistoryWindow bounds how many prior turns are replayed to the model.
	HistoryWindow int

	TracingEnabled bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first when present; real environment variables win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:       getEnv("KUBEWISE_HTTP_ADDR", ":8000"),
		RedisURL:       getEnv("KUBEWISE_REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolSize:  ParseIntEnv("KUBEWISE_REDIS_POOL_SIZE", 10),
		ProxyBaseURL:   getEnv("KUBEWISE_PROXY_BASE_URL", ""),
		ProxyAPIKey:    getEnv("KUBEWISE_PROXY_API_KEY", ""),
		ProxyModel:     getEnv("KUBEWISE_PROXY_MODEL", ""),
		HistoryWindow:  ParseIntEnv("KUBEWISE_HISTORY_WINDOW", 10),
		TracingEnabled: ParseBoolString(os.Getenv("KUBEWISE_TRACING_ENABLED"), false),
	}

	if cfg.ProxyBaseURL == "" {
		return Config{}, fmt.Errorf("KUBEWISE_PROXY_BASE_URL is required")
	}
	if cfg.RedisPoolSize <= 0 {
		return Config{}, fmt.Errorf("KUBEWISE_REDIS_POOL_SIZE must be positive, got %d", cfg.RedisPoolSize)
	}
	if cfg.HistoryWindow <= 0 {
		return Config{}, fmt.Errorf("KUBEWISE_HISTORY_WINDOW must be positive, got %d", cfg.HistoryWindow)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
