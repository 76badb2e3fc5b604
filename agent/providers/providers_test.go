package providers_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/agent/providers"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
	"github.com/tailored-agentic-units/incidentdesk/tools"
)

type capture struct {
	mu     sync.Mutex
	path   string
	query  string
	header http.Header
	body   map[string]any
}

func (c *capture) handler(t *testing.T, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.path = r.URL.Path
		c.query = r.URL.RawQuery
		c.header = r.Header.Clone()
		if err := json.Unmarshal(data, &c.body); err != nil {
			t.Errorf("request body is not JSON: %v", err)
		}
		c.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}
}

var catalog = []protocol.Tool{{
	Name:        "get_incident_details",
	Description: "Get incident details",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"incident_number": map[string]any{"type": "string"},
		},
		"required": []string{"incident_number"},
	},
}}

func TestProviders_Registered(t *testing.T) {
	registered := strings.Join(agent.Providers(), ",")
	for _, name := range []string{"anthropic", "azure", "openai"} {
		if !strings.Contains(registered, name) {
			t.Errorf("provider %q not registered (have %s)", name, registered)
		}
	}
}

func TestProviders_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  agent.Config
		want error
	}{
		{"azure without endpoint", agent.Config{Provider: "azure", APIKey: "k"}, providers.ErrMissingEndpoint},
		{"azure without key", agent.Config{Provider: "azure", BaseURL: "https://x.openai.azure.com"}, providers.ErrMissingAPIKey},
		{"openai without key", agent.Config{Provider: "openai"}, providers.ErrMissingAPIKey},
		{"anthropic without key", agent.Config{Provider: "anthropic"}, providers.ErrMissingAPIKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := agent.New(&tt.cfg)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenAI_DecideToolCalls(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(t, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [
					{"id": "call_a", "type": "function", "function": {"name": "get_incident_details", "arguments": "{\"incident_number\":\"INC0010001\"}"}},
					{"id": "", "type": "function", "function": {"name": "get_incident_details", "arguments": "{\"incident_number\":\"INC0010002\"}"}}
				]
			}
		}]
	}`))
	defer srv.Close()

	a, err := agent.New(&agent.Config{
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		BaseURL:   srv.URL + "/v1",
		APIKey:    "test-key",
		MaxTokens: 500,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	d, err := a.Decide(context.Background(), agent.Request{
		System:  "system prompt",
		Message: "show INC0010001 and INC0010002",
		Catalog: catalog,
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if d.IsFinal() {
		t.Fatal("got final answer, want tool calls")
	}
	if len(d.Calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(d.Calls))
	}
	if d.Calls[0].ID != "call_a" {
		t.Errorf("got call id %q, want %q", d.Calls[0].ID, "call_a")
	}
	if d.Calls[1].ID == "" {
		t.Error("missing call id was not synthesized")
	}
	if d.Calls[0].Arguments != `{"incident_number":"INC0010001"}` {
		t.Errorf("got arguments %q", d.Calls[0].Arguments)
	}

	if c.path != "/v1/chat/completions" {
		t.Errorf("got path %q, want /v1/chat/completions", c.path)
	}
	if got := c.header.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("got Authorization %q", got)
	}
	msgs, _ := c.body["messages"].([]any)
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want system + user", len(msgs))
	}
	toolDefs, _ := c.body["tools"].([]any)
	if len(toolDefs) != 1 {
		t.Errorf("got %d tools, want 1", len(toolDefs))
	}
	if _, ok := c.body["temperature"]; !ok {
		t.Error("temperature omitted; zero temperature must still be sent")
	}
}

func TestAzure_DecideFinalAnswer(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(t, `{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Incident INC0010001 is resolved."}}]
	}`))
	defer srv.Close()

	a, err := agent.New(&agent.Config{
		Provider:   "azure",
		Model:      "gpt-4o-mini",
		Deployment: "incident-bot",
		BaseURL:    srv.URL,
		APIKey:     "azure-key",
		APIVersion: "2025-01-01-preview",
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	d, err := a.Decide(context.Background(), agent.Request{
		Message: "status?",
		Steps: []agent.Step{{
			Calls:   []protocol.ToolCall{{ID: "c1", Name: "get_incident_details", Arguments: `{"incident_number":"INC0010001"}`}},
			Results: []tools.Result{{CallID: "c1", Name: "get_incident_details", Content: "State: Resolved"}},
		}},
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if !d.IsFinal() || d.Text != "Incident INC0010001 is resolved." {
		t.Errorf("got %+v, want final answer", d)
	}
	if c.path != "/openai/deployments/incident-bot/chat/completions" {
		t.Errorf("got path %q", c.path)
	}
	if !strings.Contains(c.query, "api-version=2025-01-01-preview") {
		t.Errorf("got query %q, want api-version", c.query)
	}
	if got := c.header.Get("api-key"); got != "azure-key" {
		t.Errorf("got api-key %q", got)
	}

	msgs, _ := c.body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want user, assistant tool call, tool result", len(msgs))
	}
	last, _ := msgs[2].(map[string]any)
	if last["role"] != "tool" || last["tool_call_id"] != "c1" {
		t.Errorf("got tool message %v", last)
	}
}

func TestOpenAI_DecideNoChoices(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(t, `{"id": "x", "object": "chat.completion", "choices": []}`))
	defer srv.Close()

	a, err := agent.New(&agent.Config{Provider: "openai", Model: "m", BaseURL: srv.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = a.Decide(context.Background(), agent.Request{Message: "hi"})
	if !errors.Is(err, providers.ErrEmptyReply) {
		t.Errorf("got %v, want ErrEmptyReply", err)
	}
}

func TestAnthropic_Decide(t *testing.T) {
	c := &capture{}
	srv := httptest.NewServer(c.handler(t, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-sonnet-4-5",
		"content": [
			{"type": "text", "text": "Let me look that up."},
			{"type": "tool_use", "id": "toolu_1", "name": "get_incident_details", "input": {"incident_number": "INC0010001"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`))
	defer srv.Close()

	a, err := agent.New(&agent.Config{
		Provider:  "anthropic",
		Model:     "claude-sonnet-4-5",
		BaseURL:   srv.URL,
		APIKey:    "ant-key",
		MaxTokens: 500,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	d, err := a.Decide(context.Background(), agent.Request{
		System:  "system prompt",
		Message: "show INC0010001",
		Catalog: catalog,
		Steps: []agent.Step{{
			Calls: []protocol.ToolCall{
				{ID: "t1", Name: "search_incidents", Arguments: `{"query":"vpn"}`},
				{ID: "t2", Name: "search_incidents", Arguments: `not json`},
			},
			Results: []tools.Result{
				{CallID: "t1", Name: "search_incidents", Content: "none"},
				{CallID: "t2", Name: "search_incidents", Content: "Error executing search_incidents: bad", IsError: true},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}

	if len(d.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(d.Calls))
	}
	if d.Calls[0].ID != "toolu_1" || d.Calls[0].Name != "get_incident_details" {
		t.Errorf("got call %+v", d.Calls[0])
	}
	var args map[string]string
	if err := json.Unmarshal([]byte(d.Calls[0].Arguments), &args); err != nil {
		t.Fatalf("arguments not JSON: %v", err)
	}
	if args["incident_number"] != "INC0010001" {
		t.Errorf("got arguments %v", args)
	}

	if c.path != "/v1/messages" {
		t.Errorf("got path %q, want /v1/messages", c.path)
	}
	if got := c.header.Get("X-Api-Key"); got != "ant-key" {
		t.Errorf("got X-Api-Key %q", got)
	}
	if _, ok := c.body["system"]; !ok {
		t.Error("system prompt not sent")
	}

	// user, assistant tool_use, one merged user turn of tool results
	msgs, _ := c.body["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	results, _ := msgs[2].(map[string]any)
	content, _ := results["content"].([]any)
	if len(content) != 2 {
		t.Errorf("got %d tool result blocks, want 2", len(content))
	}
}
