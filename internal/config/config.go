// Package config loads application settings from a YAML file, an optional
// .env file and TOUCHE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Addr    string        `yaml:"addr"`
	Debug   bool          `yaml:"debug"`
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects and configures the storage medium.
type StorageConfig struct {
	// Backend is one of memory, sqlite, file, redis, nats or none.
	Backend string `yaml:"backend"`
	// DSN is the database path, directory, Redis address or NATS URL.
	DSN string `yaml:"dsn"`
	// Namespace is the Redis key prefix or the NATS bucket name.
	Namespace    string        `yaml:"namespace"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		Storage: StorageConfig{
			Backend:      "sqlite",
			DSN:          "./data/touche.db",
			Namespace:    "touche",
			PollInterval: 250 * time.Millisecond,
			Timeout:      5 * time.Second,
		},
	}
}

// Load reads configPath when it exists, then applies .env and the
// environment. A missing file is not an error. The result is not validated;
// callers apply their own overrides first and then call Validate.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("TOUCHE_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("TOUCHE_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TOUCHE_DEBUG: %w", err)
		}
		c.Debug = debug
	}
	if v := os.Getenv("TOUCHE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("TOUCHE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("TOUCHE_NAMESPACE"); v != "" {
		c.Storage.Namespace = v
	}
	if v := os.Getenv("TOUCHE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TOUCHE_POLL_INTERVAL: %w", err)
		}
		c.Storage.PollInterval = d
	}
	return nil
}

// Validate checks that the configuration can be used.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "memory", "none":
	case "sqlite", "file", "redis", "nats":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage backend %q requires a dsn", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Timeout <= 0 {
		return errors.New("storage timeout must be positive")
	}
	return nil
}
