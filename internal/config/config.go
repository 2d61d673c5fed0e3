// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Broadcast modes
const (
	BroadcastModeLocal = "local"
	BroadcastModeRedis = "redis"
)

// Config is the full process configuration
type Config struct {
	Port           uint16        `env:"PORT"            envDefault:"8080"                  validate:"min=1"`
	FrontendURL    string        `env:"FRONTEND_URL"    envDefault:"http://localhost:3000" validate:"required"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"                   validate:"gt=0"`
	PingTimeout    time.Duration `env:"PING_TIMEOUT"    envDefault:"20s"                   validate:"gt=0"`
	PingInterval   time.Duration `env:"PING_INTERVAL"   envDefault:"15s"                   validate:"gt=0,ltfield=PingTimeout"`
	LogLevel       string        `env:"LOG_LEVEL"       envDefault:"info"                  validate:"oneof=debug info warn error"`
	BroadcastMode  string        `env:"BROADCAST_MODE"  envDefault:"local"                 validate:"oneof=local redis"`
	RedisURL       string        `env:"REDIS_URL"                                          validate:"omitempty,url"`
	SendBuffer     int           `env:"SEND_BUFFER"     envDefault:"256"                   validate:"min=1"`
}

// Load reads an optional .env file, then parses and validates the
// environment.
func Load(logger *slog.Logger, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		logger.Debug("env file not found", slog.String("files", strings.Join(envFiles, ",")))
	}
	return Parse(env.Options{})
}

// Parse builds a Config from the environment described by opts
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if cfg.BroadcastMode == BroadcastModeRedis && cfg.RedisURL == "" {
		return nil, errors.New("validate config: REDIS_URL is required when BROADCAST_MODE=redis")
	}
	return cfg, nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SlogLevel converts LogLevel to a slog.Level
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
