package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// Config holds the process configuration loaded from environment variables.
type Config struct {
	// EdgePort is the port of the local emulator. It is also the port the
	// development credentials point at when no connection string is given.
	EdgePort int `env:"EDGE_PORT" envDefault:"4566"`

	// DataDir is the base directory where emulator data (blobs) is stored.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// EnabledServices lists the emulator services served by `bluectl start`.
	EnabledServices []string `env:"ENABLED_SERVICES" envDefault:"blob,queue,table" envSeparator:","`

	// LogLevel controls the verbosity of logging (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// StorePath is the JSON key/value store read for storage.* settings.
	// Empty means $HOME/.bluectl/config.json.
	StorePath string `env:"BLUECTL_CONFIG"`

	// OTelEndpoint enables OTLP trace export when set.
	OTelEndpoint string `env:"BLUECTL_OTEL_ENDPOINT"`
}

// Load creates a Config by reading environment variables.
// Missing values are replaced with defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath()
	}
	return cfg, nil
}

// DefaultStorePath returns $HOME/.bluectl/config.json, or a relative path when
// the home directory cannot be determined.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".bluectl", "config.json")
	}
	return filepath.Join(home, ".bluectl", "config.json")
}

// IsServiceEnabled checks if a given service name is in the EnabledServices list.
func (c *Config) IsServiceEnabled(serviceName string) bool {
	for _, s := range c.EnabledServices {
		if s == serviceName {
			return true
		}
	}
	return false
}

// Validate performs basic validation on the configuration.
func (c *Config) Validate() error {
	if c.EdgePort <= 0 || c.EdgePort >= 65536 {
		return fmt.Errorf("invalid EDGE_PORT: %d (must be 1-65535)", c.EdgePort)
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR cannot be empty")
	}
	return nil
}

// LocalEndpoint is the base URL of the emulator on this host.
func (c *Config) LocalEndpoint() string {
	return fmt.Sprintf("http://127.0.0.1:%d", c.EdgePort)
}
