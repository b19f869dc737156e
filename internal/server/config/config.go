// Package config handles configuration for the server component,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Storage backends accepted in StorageBackend.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
)

// Config holds runtime settings for the profilekeeper server.
//
// Fields:
//   - EndpointAddrHTTP / EndpointAddrGRPC: bind addresses for the JSON API and the gRPC health endpoint.
//   - StorageBackend: where the record collection lives (file, postgres or s3).
//   - DataFile: collection file for the file backend.
//   - DatabaseDSN / CollectionName: PostgreSQL DSN (pgx) and the row the collection is kept in.
//   - S3RootUser / S3RootPassword / S3Bucket / S3Region / S3BaseEndpoint / S3ObjectKey: object storage settings.
//   - AdvisorURL / AdvisorTimeout: base URL of the risk advisor and the per-call timeout.
//   - AllowedOrigins: CORS origins allowed to call the API ("*" allows any).
//   - RateLimitRPS / RateLimitBurst: per-client limit on /api routes; zero disables it.
type Config struct {
	EndpointAddrHTTP string
	EndpointAddrGRPC string

	StorageBackend string
	DataFile       string
	DatabaseDSN    string
	CollectionName string

	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3ObjectKey    string

	AdvisorURL     string
	AdvisorTimeout time.Duration

	AllowedOrigins []string
	RateLimitRPS   float64
	RateLimitBurst int

	ShutdownTimeout time.Duration
	LogLevel        string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.StorageBackend = BackendFile
	c.DataFile = "data/data.json"
	c.CollectionName = "users"
	c.S3Region = "us-east-1"
	c.S3ObjectKey = "data.json"
	c.AdvisorURL = "http://127.0.0.1:5050"
	c.AdvisorTimeout = 10 * time.Second
	c.AllowedOrigins = []string{"http://localhost:3000"}
	c.RateLimitBurst = 20
	c.ShutdownTimeout = 10 * time.Second
	c.LogLevel = "info"
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendFile:
		if c.DataFile == "" {
			return errors.New("file backend needs a data file")
		}
	case BackendPostgres:
		if c.DatabaseDSN == "" {
			return errors.New("postgres backend needs a database DSN")
		}
	case BackendS3:
		if c.S3Bucket == "" || c.S3ObjectKey == "" {
			return errors.New("s3 backend needs a bucket and an object key")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.AdvisorURL == "" {
		return errors.New("advisor URL is required")
	}
	if c.RateLimitRPS < 0 {
		return errors.New("rate limit must not be negative")
	}
	return nil
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
