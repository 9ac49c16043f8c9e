// Package config holds the central configuration for the skillforge
// service. Files may be JSON or YAML (by extension); environment
// variables override files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CacheConfig holds cache store settings.
type CacheConfig struct {
	MaxSize       int `json:"max_size" yaml:"max_size"`
	SweepSeconds  int `json:"sweep_seconds" yaml:"sweep_seconds"`
	DefaultTTLSec int `json:"default_ttl_seconds" yaml:"default_ttl_seconds"`
}

// JWTConfig holds token validation settings.
type JWTConfig struct {
	Algorithm     string `json:"algorithm" yaml:"algorithm"`
	Secret        string `json:"secret" yaml:"secret"`
	PublicKeyFile string `json:"public_key_file" yaml:"public_key_file"`
	Issuer        string `json:"issuer" yaml:"issuer"`
}

// PostgresConfig holds the submission source connection.
type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

// BroadcastConfig holds the Redis Pub/Sub settings for real-time
// pushes. Disabled means board updates are computed but not published.
type BroadcastConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Endpoint   string  `json:"endpoint" yaml:"endpoint"`
	SampleRate float64 `json:"sample_rate" yaml:"sample_rate"`
}

// LeaderboardConfig holds ranking engine settings.
type LeaderboardConfig struct {
	TopN int `json:"top_n" yaml:"top_n"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// Config is the central configuration struct embedding all component
// configs.
type Config struct {
	Env         string            `json:"env" yaml:"env"` // development | production
	Server      ServerConfig      `json:"server" yaml:"server"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	JWT         JWTConfig         `json:"jwt" yaml:"jwt"`
	Postgres    PostgresConfig    `json:"postgres" yaml:"postgres"`
	Broadcast   BroadcastConfig   `json:"broadcast" yaml:"broadcast"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Leaderboard LeaderboardConfig `json:"leaderboard" yaml:"leaderboard"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Addr:      ":8080",
			LogLevel:  "info",
			LogFormat: "text",
		},
		Cache: CacheConfig{
			MaxSize:       10000,
			SweepSeconds:  300,
			DefaultTTLSec: 3600,
		},
		JWT: JWTConfig{
			Algorithm: "HS256",
		},
		Broadcast: BroadcastConfig{
			Addr: "localhost:6379",
		},
		Telemetry: TelemetryConfig{
			Endpoint:   "localhost:4318",
			SampleRate: 1.0,
		},
		Leaderboard: LeaderboardConfig{
			TopN: 10,
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse json config: %w", err)
		}
	}

	return cfg, nil
}

// LoadFromEnv applies environment variable overrides to the config.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("SKILLFORGE_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("SKILLFORGE_HTTP_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SKILLFORGE_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("SKILLFORGE_LOG_FORMAT"); v != "" {
		cfg.Server.LogFormat = v
	}
	if v := os.Getenv("SKILLFORGE_CACHE_MAX_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxSize = n
		}
	}
	if v := os.Getenv("SKILLFORGE_JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("SKILLFORGE_JWT_ISSUER"); v != "" {
		cfg.JWT.Issuer = v
	}
	if v := os.Getenv("SKILLFORGE_POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("SKILLFORGE_REDIS_ADDR"); v != "" {
		cfg.Broadcast.Addr = v
		cfg.Broadcast.Enabled = true
	}
	if v := os.Getenv("SKILLFORGE_REDIS_PASSWORD"); v != "" {
		cfg.Broadcast.Password = v
	}
	if v := os.Getenv("SKILLFORGE_OTLP_ENDPOINT"); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
}
