package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the profilectl CLI.
//
// Fields:
//   - ServerURL: base URL of the profilekeeper HTTP API.
//   - RequestTimeout: upper bound for a single API call.
type Config struct {
	ServerURL      string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig constructs a Config from defaults overlaid with the JSON file
// at path, if path is not empty. Command-line flags are applied by the
// caller afterwards.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, path); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
