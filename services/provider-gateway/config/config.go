package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration for the provider gateway service.
type Config struct {
	Port           string
	DatabaseDriver string
	DatabaseURL    string
	SharedSecret   string
	RequestTimeout time.Duration
	LogLevel       string
}

// FromEnv loads configuration from the environment.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:           envOr("PROVIDER_GATEWAY_PORT", "8081"),
		DatabaseDriver: envOr("PROVIDER_GATEWAY_DB_DRIVER", "sqlite"),
		DatabaseURL:    envOr("PROVIDER_GATEWAY_DB_URL", "./provider-gateway.db"),
		SharedSecret:   os.Getenv("PROVIDER_GATEWAY_SHARED_SECRET"),
		LogLevel:       envOr("PROVIDER_GATEWAY_LOG_LEVEL", "info"),
	}
	timeout := envOr("PROVIDER_GATEWAY_TIMEOUT_SECONDS", "10")
	seconds, err := strconv.Atoi(timeout)
	if err != nil || seconds <= 0 {
		return Config{}, fmt.Errorf("invalid PROVIDER_GATEWAY_TIMEOUT_SECONDS %q", timeout)
	}
	cfg.RequestTimeout = time.Duration(seconds) * time.Second

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unsupported PROVIDER_GATEWAY_DB_DRIVER %q", cfg.DatabaseDriver)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
