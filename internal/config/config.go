// Package config loads the bus daemon's configuration the way the
// teacher's ws/config.go does: env-tagged struct, optional .env file,
// a Validate pass, and a LogConfig that emits the resolved config as one
// structured log event.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Backend names the storage.Backend variant the daemon wires up.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Config holds the bus daemon's full runtime configuration.
type Config struct {
	BusID     string `env:"BUS_ID"`
	MachineID uint64 `env:"MACHINE_ID" envDefault:"1"`

	StorageBackend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	FileStoreRoot  string `env:"FILESTORE_ROOT" envDefault:"./data/inboxes"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	PostgresDSN    string `env:"POSTGRES_DSN" envDefault:""`

	RoutingPolicy    string `env:"ROUTING_POLICY" envDefault:"broadcast"`
	FallbackClientID string `env:"FALLBACK_CLIENT_ID" envDefault:""`

	RateLimitPerSender float64 `env:"RATE_LIMIT_PER_SENDER" envDefault:"50"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" envDefault:"100"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load reads .env (if present, ignoring a missing file), parses
// environment variables into a Config and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("config: no .env file found, using environment variables only")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks enum and range constraints.
func (c *Config) Validate() error {
	switch Backend(c.StorageBackend) {
	case BackendMemory, BackendFile, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of memory, file, redis, postgres (got %q)", c.StorageBackend)
	}

	if c.StorageBackend == string(BackendPostgres) && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
	}

	switch c.RoutingPolicy {
	case "broadcast", "direct_or_fallback", "hash_based":
	default:
		return fmt.Errorf("ROUTING_POLICY must be one of broadcast, direct_or_fallback, hash_based (got %q)", c.RoutingPolicy)
	}

	if c.RoutingPolicy == "direct_or_fallback" && c.FallbackClientID == "" {
		return fmt.Errorf("FALLBACK_CLIENT_ID is required when ROUTING_POLICY=direct_or_fallback")
	}

	if c.MachineID > 0xFF {
		return fmt.Errorf("MACHINE_ID must fit in 8 bits (0-255), got %d", c.MachineID)
	}

	if c.RateLimitPerSender <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SENDER must be > 0, got %f", c.RateLimitPerSender)
	}
	if c.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_BURST must be > 0, got %d", c.RateLimitBurst)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of json, pretty (got %q)", c.LogFormat)
	}

	return nil
}

// LogConfig emits the resolved configuration as one structured event,
// omitting the Postgres DSN since it may carry credentials.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("bus_id", c.BusID).
		Uint64("machine_id", c.MachineID).
		Str("storage_backend", c.StorageBackend).
		Str("filestore_root", c.FileStoreRoot).
		Str("redis_addr", c.RedisAddr).
		Bool("postgres_dsn_set", c.PostgresDSN != "").
		Str("routing_policy", c.RoutingPolicy).
		Str("fallback_client_id", c.FallbackClientID).
		Float64("rate_limit_per_sender", c.RateLimitPerSender).
		Int("rate_limit_burst", c.RateLimitBurst).
		Str("metrics_addr", c.MetricsAddr).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
