package statsapi

import (
	"time"

	"github.com/kbukum/fetchguard/errors"
	"github.com/kbukum/fetchguard/proxy"
)

// Config holds the operator server settings.
type Config struct {
	Enabled      bool          `yaml:"enabled" mapstructure:"enabled"`
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	// Service and Version are reported by /health.
	Service string `yaml:"service" mapstructure:"service"`
	Version string `yaml:"version" mapstructure:"version"`
	// ProxyCheckURL is the IP echo fetched by POST /proxies/check.
	ProxyCheckURL string `yaml:"proxy_check_url" mapstructure:"proxy_check_url"`
}

// ApplyDefaults sets sensible default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 9090
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 15 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 15 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.Service == "" {
		c.Service = "fetchguard"
	}
	if c.ProxyCheckURL == "" {
		c.ProxyCheckURL = proxy.DefaultCheckURL
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Configuration("statsapi.port", "must be between 0 and 65535")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		return errors.Configuration("statsapi.timeouts", "must be non-negative")
	}
	return nil
}
