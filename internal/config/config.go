// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process-wide settings.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	DatabaseDSN     string
	RedisAddr       string
	JWTSecret       string
	JWTAudience     string
	IndexFile       string
	TelegramToken   string
	ShutdownTimeout time.Duration
	Debug           bool
}

// Load reads .env files (a missing file is not an error) and then the
// environment.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	timeout, err := time.ParseDuration(getEnv("SHUTDOWN_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("parse SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		GRPCAddr:        os.Getenv("GRPC_ADDR"),
		DatabaseDSN:     os.Getenv("DATABASE_DSN"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret"),
		JWTAudience:     os.Getenv("JWT_AUDIENCE"),
		IndexFile:       getEnv("INDEX_FILE", "web/index.html"),
		TelegramToken:   os.Getenv("TELEGRAM_TOKEN"),
		ShutdownTimeout: timeout,
		Debug:           strings.EqualFold(os.Getenv("GIN_MODE"), "debug"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("HTTP_ADDR must not be empty")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
