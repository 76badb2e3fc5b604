package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

// Handler implements a tool. It receives validated arguments and returns the
// text shown to the reasoning step. A returned error becomes an error result;
// it never escapes the executor.
type Handler func(ctx context.Context, args Args) (string, error)

// Spec declares a tool: its name, the description the reasoning step reads
// when choosing among tools, its argument fields, and its handler.
//
// Check validates relationships between fields (for example "exactly one of
// user or group") after per-field validation and defaults.
type Spec struct {
	Name        string
	Description string
	Fields      []Field
	Check       func(Args) error
	Handler     Handler
}

// Result is the outcome of one tool call. Every call produces exactly one,
// including calls to unknown tools and calls that time out.
type Result struct {
	CallID  string `json:"call_id,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

type entry struct {
	spec   Spec
	tool   protocol.Tool
	schema *jsonschema.Schema
}

// Registry is the tool catalog. Tools are added at startup and never
// replaced or removed, so the catalog the reasoning step sees is the same
// on every call.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool to the catalog.
// Returns ErrAlreadyExists if a tool with the same name is already registered.
func (r *Registry) Register(spec Spec) error {
	if spec.Name == "" {
		return ErrEmptyName
	}
	if spec.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, spec.Name)
	}

	params := parameters(spec.Fields)
	schema, err := compile(spec.Name, params)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[spec.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, spec.Name)
	}

	r.entries[spec.Name] = &entry{
		spec: spec,
		tool: protocol.Tool{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  params,
		},
		schema: schema,
	}
	r.order = append(r.order, spec.Name)
	return nil
}

// MustRegister is Register for catalogs assembled at startup, where a
// failure is a programming error.
func (r *Registry) MustRegister(specs ...Spec) {
	for _, spec := range specs {
		if err := r.Register(spec); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the spec registered under name.
func (r *Registry) Lookup(name string) (Spec, error) {
	e, err := r.get(name)
	if err != nil {
		return Spec{}, err
	}
	return e.spec, nil
}

// List returns the catalog in registration order.
func (r *Registry) List() []protocol.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]protocol.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) get(name string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.entries[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}
