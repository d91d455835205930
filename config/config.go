package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	RedisURL           string
	APIFootballKey     string
	APIFootballURL     string
	DatabaseURL        string
	ServerAddr         string
	WorkerCount        int
	ScanDays           int
	ScanSchedule       string
	HeartbeatInterval  time.Duration
	PopTimeout         time.Duration
	ProviderTimeout    time.Duration
	ProviderRateLimit  int
	StoreRetryDelay    time.Duration
	StoreRetryAttempts int
	LogLevel           string
	Environment        string
}

func Default() Config {
	return Config{
		RedisURL:           "redis://localhost:6379/0",
		APIFootballURL:     "https://v3.football.api-sports.io",
		ServerAddr:         ":8080",
		WorkerCount:        1,
		ScanDays:           2,
		ScanSchedule:       "*/30 * * * *",
		HeartbeatInterval:  5 * time.Minute,
		PopTimeout:         5 * time.Second,
		ProviderTimeout:    30 * time.Second,
		ProviderRateLimit:  10,
		StoreRetryDelay:    5 * time.Second,
		StoreRetryAttempts: 3,
		LogLevel:           "info",
		Environment:        "development",
	}
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, falling back to Default for unset keys.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	positive := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("%s: want a positive integer, got %q", key, v))
			return
		}
		*dst = n
	}
	duration := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s: want a positive duration, got %q", key, v))
			return
		}
		*dst = d
	}

	str("REDIS_URL", &cfg.RedisURL)
	str("API_FOOTBALL_KEY", &cfg.APIFootballKey)
	str("API_FOOTBALL_URL", &cfg.APIFootballURL)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("SERVER_ADDR", &cfg.ServerAddr)
	str("SCAN_SCHEDULE", &cfg.ScanSchedule)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("ENVIRONMENT", &cfg.Environment)
	positive("WORKER_COUNT", &cfg.WorkerCount)
	positive("SCAN_DAYS", &cfg.ScanDays)
	positive("PROVIDER_RATE_LIMIT", &cfg.ProviderRateLimit)
	duration("HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval)
	duration("POP_TIMEOUT", &cfg.PopTimeout)
	duration("PROVIDER_TIMEOUT", &cfg.ProviderTimeout)
	duration("STORE_RETRY_DELAY", &cfg.StoreRetryDelay)

	if v, ok := lookup("STORE_RETRY_ATTEMPTS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Errorf("STORE_RETRY_ATTEMPTS: want a non-negative integer, got %q", v))
		} else {
			cfg.StoreRetryAttempts = n
		}
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
