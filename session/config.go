package session

import (
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/config"
)

// Config holds session store parameters.
type Config struct {
	// Retain is the number of turns kept after a trim. A session is trimmed
	// once it holds more than twice this many.
	Retain int `json:"retain,omitempty" yaml:"retain,omitempty"`
	// IdleTTL evicts sessions not touched for this long. Zero disables
	// eviction.
	IdleTTL config.Duration `json:"idle_ttl,omitempty" yaml:"idle_ttl,omitempty"`
	// SweepInterval is how often Run checks for idle sessions.
	SweepInterval config.Duration `json:"sweep_interval,omitempty" yaml:"sweep_interval,omitempty"`
}

// DefaultConfig keeps the 10 most recent turns and never evicts.
func DefaultConfig() Config {
	return Config{
		Retain:        10,
		SweepInterval: config.Duration(time.Minute),
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Retain > 0 {
		c.Retain = source.Retain
	}
	if source.IdleTTL > 0 {
		c.IdleTTL = source.IdleTTL
	}
	if source.SweepInterval > 0 {
		c.SweepInterval = source.SweepInterval
	}
}
