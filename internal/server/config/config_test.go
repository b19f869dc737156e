package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Equal(t, ":50051", c.EndpointAddrGRPC)
	assert.Equal(t, BackendFile, c.StorageBackend)
	assert.Equal(t, "data/data.json", c.DataFile)
	assert.Equal(t, "users", c.CollectionName)
	assert.Equal(t, "us-east-1", c.S3Region)
	assert.Equal(t, "data.json", c.S3ObjectKey)
	assert.Equal(t, "http://127.0.0.1:5050", c.AdvisorURL)
	assert.Equal(t, 10*time.Second, c.AdvisorTimeout)
	assert.Equal(t, []string{"http://localhost:3000"}, c.AllowedOrigins)
	assert.Zero(t, c.RateLimitRPS)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	c, err := LoadConfig(nil)
	require.NoError(t, err)
	require.NotNil(t, c, "LoadConfig must not return nil")

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	path := writeTempJSON(t, "", "", map[string]any{
		"endpoint_addr_http": ":9000",
		"storage_backend":    "postgres",
		"database_dsn":       "postgres://json",
	})

	c, err := LoadConfig([]string{"-c", path, "-d", "postgres://flag"})
	require.NoError(t, err)

	assert.Equal(t, ":9000", c.EndpointAddrHTTP)
	assert.Equal(t, BackendPostgres, c.StorageBackend)
	assert.Equal(t, "postgres://flag", c.DatabaseDSN)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := LoadConfig([]string{"-s", "mongo"})
	assert.ErrorContains(t, err, `unknown storage backend "mongo"`)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "file without path", mutate: func(c *Config) { c.DataFile = "" }, wantErr: "data file"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.StorageBackend = BackendPostgres }, wantErr: "database DSN"},
		{name: "postgres ok", mutate: func(c *Config) {
			c.StorageBackend = BackendPostgres
			c.DatabaseDSN = "postgres://x"
		}},
		{name: "s3 without bucket", mutate: func(c *Config) { c.StorageBackend = BackendS3 }, wantErr: "bucket"},
		{name: "s3 ok", mutate: func(c *Config) {
			c.StorageBackend = BackendS3
			c.S3Bucket = "profiles"
		}},
		{name: "no advisor", mutate: func(c *Config) { c.AdvisorURL = "" }, wantErr: "advisor"},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimitRPS = -1 }, wantErr: "rate limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			c.LoadDefaults()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
