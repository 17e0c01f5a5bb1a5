// internal/common/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Extraction   ExtractionConfig   `mapstructure:"extraction"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Client       ClientConfig       `mapstructure:"client"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Camunda      CamundaConfig      `mapstructure:"camunda"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ExtractionConfig configures the streaming property-information endpoint.
type ExtractionConfig struct {
	URL                string        `mapstructure:"url"`
	APIToken           string        `mapstructure:"api_token"`
	PropertyType       string        `mapstructure:"property_type"`
	RequestPreliminary bool          `mapstructure:"request_preliminary"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
}

// ProvisioningConfig configures the one-shot agent provisioning endpoint.
// Timeout bounds the whole call, including the wait for the agent to be created;
// ConnectTimeout bounds only the dial.
type ProvisioningConfig struct {
	URL            string        `mapstructure:"url"`
	APIToken       string        `mapstructure:"api_token"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ClientConfig is the identity sent as client_data when no user is signed in.
type ClientConfig struct {
	Name  string `mapstructure:"name"`
	Email string `mapstructure:"email"`
	Phone string `mapstructure:"phone"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	AgentTTL time.Duration `mapstructure:"agent_ttl"`
}

type CamundaConfig struct {
	BrokerAddress string        `mapstructure:"broker_address"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// Validate rejects configurations that cannot reach either remote service.
func (c *Config) Validate() error {
	var errs []error
	if err := validateEndpoint("extraction.url", c.Extraction.URL); err != nil {
		errs = append(errs, err)
	}
	if err := validateEndpoint("provisioning.url", c.Provisioning.URL); err != nil {
		errs = append(errs, err)
	}
	if c.Extraction.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("extraction.idle_timeout must be positive"))
	}
	if c.Provisioning.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("provisioning.timeout must be positive"))
	}
	if c.Provisioning.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("provisioning.connect_timeout must not be negative"))
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		errs = append(errs, fmt.Errorf("redis.address is required when redis is enabled"))
	}
	return errors.Join(errs...)
}

func validateEndpoint(key, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
