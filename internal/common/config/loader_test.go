package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
extraction:
  url: https://parser.example.com/v1/parse/stream
  api_token: ${TEST_PARSER_TOKEN}
  idle_timeout: 45s
provisioning:
  url: https://agents.example.com/v1/demo-agent
client:
  name: Demo Visitor
`

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
}

func TestLoadFrom_BaseFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", baseYAML)
	t.Setenv("TEST_PARSER_TOKEN", "secret-token")

	cfg, err := LoadFrom(viper.New(), "test", dir)
	require.NoError(t, err)

	assert.Equal(t, "https://parser.example.com/v1/parse/stream", cfg.Extraction.URL)
	assert.Equal(t, "secret-token", cfg.Extraction.APIToken)
	assert.Equal(t, 45*time.Second, cfg.Extraction.IdleTimeout)
	assert.Equal(t, "hotel", cfg.Extraction.PropertyType)
	assert.True(t, cfg.Extraction.RequestPreliminary)
	assert.Equal(t, 30*time.Second, cfg.Provisioning.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Provisioning.ConnectTimeout)
	assert.Equal(t, "Demo Visitor", cfg.Client.Name)
	assert.Equal(t, "anonymous@example.com", cfg.Client.Email)
	assert.Equal(t, "test", cfg.App.Environment)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFrom_EnvironmentOverlayAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", baseYAML)
	writeConfig(t, dir, "config.staging.yaml", "extraction:\n  property_type: apartment\n")
	t.Setenv("PROVISIONING_API_TOKEN", "prov-token")
	t.Setenv("LOGGING_LEVEL", "debug")

	cfg, err := LoadFrom(viper.New(), "staging", dir)
	require.NoError(t, err)

	assert.Equal(t, "apartment", cfg.Extraction.PropertyType)
	assert.Equal(t, "prov-token", cfg.Provisioning.APIToken)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFrom_MissingEndpoints(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), "test", t.TempDir())
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extraction.url is required")
	assert.Contains(t, err.Error(), "provisioning.url is required")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Extraction:   ExtractionConfig{URL: "http://localhost:8081/parse", IdleTimeout: time.Second},
			Provisioning: ProvisioningConfig{URL: "http://localhost:8082/agents", Timeout: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "relative url", mutate: func(c *Config) { c.Extraction.URL = "/parse" }, wantErr: "must be an absolute URL"},
		{name: "zero idle timeout", mutate: func(c *Config) { c.Extraction.IdleTimeout = 0 }, wantErr: "idle_timeout"},
		{name: "zero provisioning timeout", mutate: func(c *Config) { c.Provisioning.Timeout = 0 }, wantErr: "provisioning.timeout"},
		{name: "negative provisioning connect timeout", mutate: func(c *Config) { c.Provisioning.ConnectTimeout = -time.Second }, wantErr: "provisioning.connect_timeout"},
		{name: "redis without address", mutate: func(c *Config) { c.Redis.Enabled = true }, wantErr: "redis.address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
