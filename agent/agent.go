// Package agent wraps language-model reasoning engines behind a single
// decision contract: given the transcript, the new user message, the
// results of earlier tool rounds, and the tool catalog, return either a
// final answer or a list of tool calls.
package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
	"github.com/tailored-agentic-units/incidentdesk/tools"
)

// Decision is the output of one reasoning step. It is a final answer when
// Calls is empty and a tool request otherwise.
type Decision struct {
	Text  string
	Calls []protocol.ToolCall
}

// FinalAnswer returns a Decision that ends the exchange with text.
func FinalAnswer(text string) Decision {
	return Decision{Text: text}
}

// ToolCalls returns a Decision requesting the given calls.
func ToolCalls(calls ...protocol.ToolCall) Decision {
	return Decision{Calls: calls}
}

// IsFinal reports whether the decision is a final answer.
func (d Decision) IsFinal() bool {
	return len(d.Calls) == 0
}

// Step is one completed tool round: the calls a decision requested and the
// results they produced, paired by index.
type Step struct {
	Calls   []protocol.ToolCall
	Results []tools.Result
}

// Request is the input to a reasoning step.
type Request struct {
	System  string
	History []protocol.Message
	Message string
	Steps   []Step
	Catalog []protocol.Tool
}

// Messages flattens the request into the conversation order every chat
// engine expects: system prompt, transcript, the new user message, then an
// assistant tool-call message followed by its tool results for each step.
func (r Request) Messages() []protocol.Message {
	messages := make([]protocol.Message, 0, len(r.History)+2+len(r.Steps)*3)
	if r.System != "" {
		messages = append(messages, protocol.NewMessage(protocol.RoleSystem, r.System))
	}
	messages = append(messages, r.History...)
	messages = append(messages, protocol.NewMessage(protocol.RoleUser, r.Message))

	for _, step := range r.Steps {
		messages = append(messages, protocol.Message{
			Role:      protocol.RoleAssistant,
			ToolCalls: step.Calls,
		})
		for _, result := range step.Results {
			messages = append(messages, protocol.Message{
				Role:       protocol.RoleTool,
				Content:    result.Content,
				ToolCallID: result.CallID,
				IsError:    result.IsError,
			})
		}
	}
	return messages
}

// Agent is a reasoning engine.
type Agent interface {
	ID() string
	Decide(ctx context.Context, req Request) (Decision, error)
}

// Factory creates an Agent from configuration. Provider packages register
// one per provider name.
type Factory func(cfg *Config) (Agent, error)

var (
	factories = map[string]Factory{}
	factoryMu sync.RWMutex
)

// RegisterProvider makes a provider available to New. Provider packages call
// it from init.
func RegisterProvider(name string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[strings.ToLower(name)] = factory
}

// Providers lists registered provider names in sorted order.
func Providers() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates an Agent for cfg.Provider.
func New(cfg *Config) (Agent, error) {
	factoryMu.RLock()
	factory, exists := factories[strings.ToLower(cfg.Provider)]
	factoryMu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q (registered: %s)", ErrUnknownProvider, cfg.Provider, strings.Join(Providers(), ", "))
	}
	return factory(cfg)
}
