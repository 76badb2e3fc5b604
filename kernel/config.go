package kernel

import (
	"time"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/core/config"
	"github.com/tailored-agentic-units/incidentdesk/memory"
	"github.com/tailored-agentic-units/incidentdesk/session"
	"github.com/tailored-agentic-units/incidentdesk/tools"
)

const (
	defaultMaxIterations   = 4
	defaultLoopTimeout     = 45 * time.Second
	defaultExchangeTimeout = 80 * time.Second
	defaultMaxExchanges    = 16
)

// DefaultSystemPrompt instructs the model how to use the ServiceNow tools.
const DefaultSystemPrompt = `You are a helpful ServiceNow assistant. Follow these rules strictly:

1. When user asks for multiple incidents, use get_multiple_incidents tool ONCE
2. Present results in clean, natural language format - no JSON
3. If tool returns good data, present it directly without extra processing
4. Never ask follow-up questions unless user specifically asks for more
5. Keep responses concise but informative
6. For single incidents, use get_incident_details tool
7. Stop after presenting the requested information
8. Use markdown formatting (headings, bullet points, code blocks, bold/italics) where appropriate for readability

Available capabilities: Get incident details, search knowledge base, create/update incidents, and more.

Always be professional and focused on providing the exact information requested.`

// Config holds initialization parameters for every subsystem an exchange
// touches. Each section delegates to that subsystem's Merge.
type Config struct {
	Agent  agent.Config            `json:"agent" yaml:"agent"`
	Agents map[string]agent.Config `json:"agents,omitempty" yaml:"agents,omitempty"`
	// ActiveAgent selects an entry of Agents in place of Agent.
	ActiveAgent string `json:"active_agent,omitempty" yaml:"active_agent,omitempty"`

	Session session.Config       `json:"session" yaml:"session"`
	Memory  memory.Config        `json:"memory" yaml:"memory"`
	Tools   tools.ExecutorConfig `json:"tools" yaml:"tools"`

	// Observer is a comma-separated list of registered observer names.
	Observer     string `json:"observer,omitempty" yaml:"observer,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`

	MaxIterations   int             `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	LoopTimeout     config.Duration `json:"loop_timeout,omitempty" yaml:"loop_timeout,omitempty"`
	ExchangeTimeout config.Duration `json:"exchange_timeout,omitempty" yaml:"exchange_timeout,omitempty"`
	MaxExchanges    int             `json:"max_exchanges,omitempty" yaml:"max_exchanges,omitempty"`
}

// DefaultConfig returns four reasoning rounds inside a 45 second loop
// budget and an 80 second exchange budget, with up to 16 exchanges running
// at once.
func DefaultConfig() Config {
	return Config{
		Agent:           agent.DefaultConfig(),
		Session:         session.DefaultConfig(),
		Memory:          memory.DefaultConfig(),
		Tools:           tools.DefaultExecutorConfig(),
		Observer:        "slog",
		SystemPrompt:    DefaultSystemPrompt,
		MaxIterations:   defaultMaxIterations,
		LoopTimeout:     config.Duration(defaultLoopTimeout),
		ExchangeTimeout: config.Duration(defaultExchangeTimeout),
		MaxExchanges:    defaultMaxExchanges,
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Agent.Merge(&source.Agent)
	c.Session.Merge(&source.Session)
	c.Memory.Merge(&source.Memory)
	c.Tools.Merge(&source.Tools)

	if len(source.Agents) > 0 {
		c.Agents = source.Agents
	}
	if source.ActiveAgent != "" {
		c.ActiveAgent = source.ActiveAgent
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
	if source.MaxIterations > 0 {
		c.MaxIterations = source.MaxIterations
	}
	if source.LoopTimeout > 0 {
		c.LoopTimeout = source.LoopTimeout
	}
	if source.ExchangeTimeout > 0 {
		c.ExchangeTimeout = source.ExchangeTimeout
	}
	if source.MaxExchanges > 0 {
		c.MaxExchanges = source.MaxExchanges
	}
}
