// Package config reads the auction service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/floroz/auction-house/pkg/auth"
)

type Config struct {
	DatabaseURL       string
	RabbitMQURL       string // empty disables the relay in the API process
	RedisAddr         string // empty disables live fan-out
	AuthPublicKeyPath string
	AuthIssuer        string
	HTTPAddr          string

	LockTimeout          time.Duration
	ReconcileInterval    time.Duration // 0 disables periodic sweeps
	ReconcileConcurrency int
	OutboxBatchSize      int
	OutboxInterval       time.Duration
}

// Load reads .env.local and .env if present, then the process environment
func Load() (*Config, error) {
	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	return FromEnv()
}

// FromEnv parses the process environment without touching dotenv files
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:       os.Getenv("AUCTION_DB_URL"),
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		AuthPublicKeyPath: os.Getenv("AUTH_PUBLIC_KEY_PATH"),
		AuthIssuer:        getenv("AUTH_ISSUER", auth.DefaultIssuer),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("AUCTION_DB_URL is not set")
	}

	var err error
	if cfg.LockTimeout, err = durationEnv("DB_LOCK_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = durationEnv("RECONCILE_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval, err = durationEnv("OUTBOX_INTERVAL", time.Second); err != nil {
		return nil, err
	}
	if cfg.ReconcileConcurrency, err = positiveIntEnv("RECONCILE_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = positiveIntEnv("OUTBOX_BATCH_SIZE", 10); err != nil {
		return nil, err
	}
	if cfg.OutboxInterval <= 0 {
		return nil, errors.New("OUTBOX_INTERVAL must be positive")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}

func positiveIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("%s must be at least 1", key)
	}
	return n, nil
}
