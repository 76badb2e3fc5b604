// Package providers registers the hosted reasoning engines with the agent
// package. Import it for side effects:
//
//	import _ "github.com/tailored-agentic-units/incidentdesk/agent/providers"
//
// Registered providers: "azure" and "openai" (go-openai) and "anthropic"
// (anthropic-sdk-go). Every engine makes one non-streaming completion call
// per decision and maps the reply onto agent.Decision.
package providers

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

var (
	ErrMissingEndpoint = errors.New("provider endpoint is required")
	ErrMissingAPIKey   = errors.New("provider API key is required")
	ErrEmptyReply      = errors.New("provider returned no choices")
)

func init() {
	agent.RegisterProvider("azure", NewAzure)
	agent.RegisterProvider("openai", NewOpenAI)
	agent.RegisterProvider("anthropic", NewAnthropic)
}

// callID keeps a provider-supplied call id or synthesizes one so results
// can always be paired with their call.
func callID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return "call_" + uuid.New().String()
}

// schemaMap returns a tool's parameter schema, substituting an empty object
// schema when none is declared.
func schemaMap(tool protocol.Tool) map[string]any {
	if len(tool.Parameters) == 0 {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	return tool.Parameters
}

// inputValue returns call arguments in a form that encodes as a JSON
// object. Malformed argument text is replaced with an empty object; the
// original call was already answered with a validation error.
func inputValue(call protocol.ToolCall) json.RawMessage {
	raw := call.RawArguments()
	if !json.Valid(raw) {
		return json.RawMessage(`{}`)
	}
	return raw
}
