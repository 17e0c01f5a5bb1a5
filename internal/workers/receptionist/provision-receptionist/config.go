// internal/workers/receptionist/provision-receptionist/config.go
package provisionreceptionist

import (
	"time"

	"property-receptionist/internal/common/config"
	"property-receptionist/internal/extraction"
	"property-receptionist/internal/models"
)

type Config struct {
	Timeout            time.Duration
	PropertyType       string
	RequestPreliminary bool
	IdleTimeout        time.Duration
	ClientData         models.ClientData
}

// LoadConfig derives the worker settings from the application config. Timeout
// covers a whole job: extraction plus provisioning.
func LoadConfig(cfg *config.Config) *Config {
	timeout := cfg.Camunda.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	idle := cfg.Extraction.IdleTimeout
	if idle <= 0 {
		idle = extraction.DefaultIdleTimeout
	}
	propertyType := cfg.Extraction.PropertyType
	if propertyType == "" {
		propertyType = "hotel"
	}

	return &Config{
		Timeout:            timeout,
		PropertyType:       propertyType,
		RequestPreliminary: cfg.Extraction.RequestPreliminary,
		IdleTimeout:        idle,
		ClientData: models.ClientData{
			Name:  cfg.Client.Name,
			Email: cfg.Client.Email,
			Phone: cfg.Client.Phone,
		},
	}
}
