package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the client configuration. Values come from an optional YAML
// file (CONFIG_FILE) with environment variables taking precedence.
type AppConfig struct {
	ServerBaseURL string `yaml:"server_base_url"`
	ServerWSURL   string `yaml:"server_ws_url"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	SnapshotDir string `yaml:"snapshot_dir"`

	WSMaxReconnects  int `yaml:"ws_max_reconnects"`
	WSReconnectDelay int `yaml:"ws_reconnect_delay_ms"`
}

// Load reads the YAML file named by CONFIG_FILE (if set), overlays
// environment variables and validates required fields.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		WSMaxReconnects:  5,
		WSReconnectDelay: 1000,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("SERVER_BASE_URL")); v != "" {
		cfg.ServerBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVER_WS_URL")); v != "" {
		cfg.ServerWSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_DIR")); v != "" {
		cfg.SnapshotDir = v
	}
	if v := strings.TrimSpace(os.Getenv("WS_MAX_RECONNECTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.WSMaxReconnects = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WS_RECONNECT_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.WSReconnectDelay = n
		}
	}

	if cfg.ServerBaseURL == "" {
		return nil, errors.New("SERVER_BASE_URL is required")
	}
	if cfg.ServerWSURL == "" {
		return nil, errors.New("SERVER_WS_URL is required")
	}

	return cfg, nil
}
