package servicenow

import (
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/config"
)

// Config holds ServiceNow connection settings.
type Config struct {
	// Instance is the instance base URL, e.g. https://dev12345.service-now.com.
	Instance string          `json:"instance,omitempty" yaml:"instance,omitempty"`
	Username string          `json:"username,omitempty" yaml:"username,omitempty"`
	Password string          `json:"password,omitempty" yaml:"password,omitempty"`
	Timeout  config.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// MaxFetchWorkers bounds concurrent lookups in get_multiple_incidents.
	MaxFetchWorkers int `json:"max_fetch_workers,omitempty" yaml:"max_fetch_workers,omitempty"`

	// Caller is the sys_user name recorded as caller on new incidents.
	Caller string `json:"caller,omitempty" yaml:"caller,omitempty"`
}

// DefaultConfig returns a 30 second request timeout, five fetch workers,
// and the demo caller. Credentials have no defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         config.Duration(30 * time.Second),
		MaxFetchWorkers: 5,
		Caller:          "Abel Tuter",
	}
}

func (c *Config) Merge(source *Config) {
	if source.Instance != "" {
		c.Instance = source.Instance
	}
	if source.Username != "" {
		c.Username = source.Username
	}
	if source.Password != "" {
		c.Password = source.Password
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
	if source.MaxFetchWorkers > 0 {
		c.MaxFetchWorkers = source.MaxFetchWorkers
	}
	if source.Caller != "" {
		c.Caller = source.Caller
	}
}

// Configured reports whether the instance and both credentials are set.
func (c Config) Configured() bool {
	return c.Instance != "" && c.Username != "" && c.Password != ""
}
