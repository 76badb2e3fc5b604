package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/core/config"
	"github.com/tailored-agentic-units/incidentdesk/kernel"
	"github.com/tailored-agentic-units/incidentdesk/observability"
	"github.com/tailored-agentic-units/incidentdesk/server"
	"github.com/tailored-agentic-units/incidentdesk/servicenow"
)

// Config is the service configuration file. Kernel settings sit at the
// top level; every other subsystem has its own section.
type Config struct {
	kernel.Config `yaml:",inline"`

	Server     server.Config             `json:"server" yaml:"server"`
	ServiceNow servicenow.Config         `json:"servicenow" yaml:"servicenow"`
	Tracing    observability.TraceConfig `json:"tracing" yaml:"tracing"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

func DefaultConfig() Config {
	cfg := Config{
		Config:     kernel.DefaultConfig(),
		Server:     server.DefaultConfig(),
		ServiceNow: servicenow.DefaultConfig(),
		LogLevel:   "info",
	}
	cfg.Observer = "slog,metrics,trace"
	return cfg
}

func (c *Config) Merge(source *Config) {
	c.Config.Merge(&source.Config)
	c.Server.Merge(&source.Server)
	c.ServiceNow.Merge(&source.ServiceNow)
	c.Tracing.Merge(&source.Tracing)
	if source.LogLevel != "" {
		c.LogLevel = source.LogLevel
	}
}

// LoadConfig layers the file at path (if any) over DefaultConfig, then
// applies environment overrides.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var file Config
		if err := config.Load(path, &file); err != nil {
			return Config{}, err
		}
		cfg.Merge(&file)
	}
	applyEnv(&cfg, getenv)
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&cfg.ServiceNow.Instance, "SERVICENOW_INSTANCE")
	set(&cfg.ServiceNow.Username, "SERVICENOW_USERNAME")
	set(&cfg.ServiceNow.Password, "SERVICENOW_PASSWORD")

	credentials := func(a *agent.Config) {
		switch a.Provider {
		case "azure":
			set(&a.BaseURL, "AZURE_OPENAI_ENDPOINT")
			set(&a.APIKey, "AZURE_OPENAI_API_KEY")
			set(&a.APIVersion, "AZURE_OPENAI_API_VERSION")
			set(&a.Deployment, "AZURE_OPENAI_DEPLOYMENT")
		case "openai":
			set(&a.APIKey, "OPENAI_API_KEY")
		case "anthropic":
			set(&a.APIKey, "ANTHROPIC_API_KEY")
		}
	}

	credentials(&cfg.Agent)
	for name, a := range cfg.Agents {
		credentials(&a)
		cfg.Agents[name] = a
	}
}

// overrides are the command-line settings that win over file and
// environment.
type overrides struct {
	configPath string
	addr       string
	agent      string
	logLevel   string
	staticDir  string
	observer   string
}

func (o *overrides) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.configPath, "config", "c", "", "Path to a JSON, JSONC or YAML configuration file")
	fs.StringVar(&o.agent, "agent", "", "Name of the configured agent to use")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&o.observer, "observer", "", "Comma-separated observers (noop, slog, metrics, trace)")
}

func (o *overrides) bindServe(fs *pflag.FlagSet) {
	fs.StringVar(&o.addr, "addr", "", "Listen address (default :8000)")
	fs.StringVar(&o.staticDir, "static-dir", "", "Directory holding the built frontend")
}

func (o *overrides) apply(cfg *Config) {
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.agent != "" {
		cfg.ActiveAgent = o.agent
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.staticDir != "" {
		cfg.Server.StaticDir = o.staticDir
	}
	if o.observer != "" {
		cfg.Observer = o.observer
	}
}

// load resolves the effective configuration for a command.
func (o *overrides) load() (Config, error) {
	cfg, err := LoadConfig(o.configPath, os.Getenv)
	if err != nil {
		return Config{}, err
	}
	o.apply(&cfg)
	return cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
