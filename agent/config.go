package agent

import (
	"time"

	"github.com/tailored-agentic-units/incidentdesk/core/config"
)

// Config describes a reasoning engine.
//
// For the "azure" provider BaseURL is the resource endpoint and Deployment
// names the deployment serving Model (Model when empty). For "openai" and
// "anthropic" BaseURL is optional.
type Config struct {
	Name        string          `json:"name,omitempty" yaml:"name,omitempty"`
	Provider    string          `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model       string          `json:"model,omitempty" yaml:"model,omitempty"`
	BaseURL     string          `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKey      string          `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIVersion  string          `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Deployment  string          `json:"deployment,omitempty" yaml:"deployment,omitempty"`
	Temperature float64         `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout     config.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultConfig returns an Azure OpenAI gpt-4o-mini deployment with
// deterministic sampling, a 500 token reply cap, and a 30 second decision
// timeout.
func DefaultConfig() Config {
	return Config{
		Name:        "default",
		Provider:    "azure",
		Model:       "gpt-4o-mini",
		APIVersion:  "2025-01-01-preview",
		Temperature: 0,
		MaxTokens:   500,
		Timeout:     config.Duration(30 * time.Second),
	}
}

// Merge overlays non-zero fields of source onto c.
func (c *Config) Merge(source *Config) {
	if source.Name != "" {
		c.Name = source.Name
	}
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.APIVersion != "" {
		c.APIVersion = source.APIVersion
	}
	if source.Deployment != "" {
		c.Deployment = source.Deployment
	}
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
}
