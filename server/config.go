package server

import (
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/config"
	"github.com/tailored-agentic-units/incidentdesk/emitter"
)

// Config configures the HTTP surface.
type Config struct {
	Addr           string   `json:"addr,omitempty" yaml:"addr,omitempty"`
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`

	// StaticDir holds the built frontend. Static hosting is off when the
	// directory does not exist.
	StaticDir string `json:"static_dir,omitempty" yaml:"static_dir,omitempty"`

	// RateLimit is the sustained chat request rate per second across all
	// clients; 0, the default, disables limiting. RateBurst is the bucket size.
	RateLimit float64 `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
	RateBurst int     `json:"rate_burst,omitempty" yaml:"rate_burst,omitempty"`

	// GzipMinSize is the smallest body, in bytes, that gets compressed.
	GzipMinSize int `json:"gzip_min_size,omitempty" yaml:"gzip_min_size,omitempty"`

	ReadHeaderTimeout config.Duration `json:"read_header_timeout,omitempty" yaml:"read_header_timeout,omitempty"`
	ShutdownTimeout   config.Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`

	Stream emitter.Config `json:"stream,omitempty" yaml:"stream,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Addr:              ":8000",
		AllowedOrigins:    []string{"*"},
		StaticDir:         "frontend/dist",
		RateBurst:         20,
		GzipMinSize:       1000,
		ReadHeaderTimeout: config.Duration(10 * time.Second),
		ShutdownTimeout:   config.Duration(15 * time.Second),
		Stream:            emitter.DefaultConfig(),
	}
}

func (c *Config) Merge(source *Config) {
	if source.Addr != "" {
		c.Addr = source.Addr
	}
	if len(source.AllowedOrigins) > 0 {
		c.AllowedOrigins = source.AllowedOrigins
	}
	if source.StaticDir != "" {
		c.StaticDir = source.StaticDir
	}
	if source.RateLimit > 0 {
		c.RateLimit = source.RateLimit
	}
	if source.RateBurst > 0 {
		c.RateBurst = source.RateBurst
	}
	if source.GzipMinSize > 0 {
		c.GzipMinSize = source.GzipMinSize
	}
	if source.ReadHeaderTimeout > 0 {
		c.ReadHeaderTimeout = source.ReadHeaderTimeout
	}
	if source.ShutdownTimeout > 0 {
		c.ShutdownTimeout = source.ShutdownTimeout
	}
	c.Stream.Merge(&source.Stream)
}
