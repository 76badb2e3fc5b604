package agent

import (
	"fmt"
	"sort"
	"sync"
)

// AgentInfo describes a registered agent without instantiating it.
type AgentInfo struct {
	Name     string
	Provider string
	Model    string
}

// Registry manages named agent configurations with lazy instantiation.
// Configs are stored at registration time; agents are created on first
// Get call, so a misconfigured alternate never blocks startup.
type Registry struct {
	mu      sync.RWMutex
	configs map[string]Config
	agents  map[string]Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		configs: make(map[string]Config),
		agents:  make(map[string]Agent),
	}
}

// Get retrieves a named agent, instantiating it lazily on first access.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, registered := r.configs[name]
	if !registered {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}

	if a, exists := r.agents[name]; exists {
		return a, nil
	}

	a, err := New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent %q: %w", name, err)
	}

	r.agents[name] = a
	return a, nil
}

// Config returns the configuration registered under name.
func (r *Registry) Config(name string) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, exists := r.configs[name]
	if !exists {
		return Config{}, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}
	return cfg, nil
}

// List returns information about all registered agents, sorted by name.
func (r *Registry) List() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(r.configs))
	for name, cfg := range r.configs {
		infos = append(infos, AgentInfo{
			Name:     name,
			Provider: cfg.Provider,
			Model:    cfg.Model,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})

	return infos
}

// Register adds a named agent configuration to the registry.
// The agent is not instantiated until Get is called.
func (r *Registry) Register(name string, cfg Config) error {
	if name == "" {
		return ErrEmptyAgentName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.configs[name]; exists {
		return fmt.Errorf("%w: %s", ErrAgentExists, name)
	}

	if cfg.Name == "" {
		cfg.Name = name
	}
	r.configs[name] = cfg
	return nil
}
