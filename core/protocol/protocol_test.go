package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

func TestRole_IsTurn(t *testing.T) {
	tests := []struct {
		role     protocol.Role
		expected bool
	}{
		{protocol.RoleUser, true},
		{protocol.RoleAssistant, true},
		{protocol.RoleSystem, false},
		{protocol.RoleTool, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.IsTurn(); got != tt.expected {
				t.Errorf("IsTurn() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestToolCall_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		data string
		want protocol.ToolCall
	}{
		{
			name: "nested format",
			data: `{"id":"call_1","type":"function","function":{"name":"get_incident_details","arguments":"{\"incident_number\":\"INC0010001\"}"}}`,
			want: protocol.ToolCall{ID: "call_1", Name: "get_incident_details", Arguments: `{"incident_number":"INC0010001"}`},
		},
		{
			name: "flat format",
			data: `{"id":"call_2","name":"search_incidents","arguments":"{\"query\":\"email\"}"}`,
			want: protocol.ToolCall{ID: "call_2", Name: "search_incidents", Arguments: `{"query":"email"}`},
		},
		{
			name: "inline object arguments",
			data: `{"id":"call_3","name":"delete_incident","arguments":{"incident_number":"INC1"}}`,
			want: protocol.ToolCall{ID: "call_3", Name: "delete_incident", Arguments: `{"incident_number":"INC1"}`},
		},
		{
			name: "missing arguments",
			data: `{"id":"call_4","name":"list_open_incidents_for_caller"}`,
			want: protocol.ToolCall{ID: "call_4", Name: "list_open_incidents_for_caller"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got protocol.ToolCall
			if err := json.Unmarshal([]byte(tt.data), &got); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestToolCall_UnmarshalJSON_Invalid(t *testing.T) {
	var tc protocol.ToolCall
	if err := json.Unmarshal([]byte(`{invalid}`), &tc); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestToolCall_RawArguments(t *testing.T) {
	if got := string(protocol.ToolCall{}.RawArguments()); got != "{}" {
		t.Errorf("got %q, want %q", got, "{}")
	}
	tc := protocol.ToolCall{Arguments: ` {"a":1} `}
	if got := string(tc.RawArguments()); got != `{"a":1}` {
		t.Errorf("got %q, want %q", got, `{"a":1}`)
	}
}

func TestMessage_JSON_OmitsEmptyToolFields(t *testing.T) {
	data, err := json.Marshal(protocol.NewMessage(protocol.RoleUser, "hello"))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"tool_call_id", "tool_calls", "is_error"} {
		if _, exists := raw[key]; exists {
			t.Errorf("%s should be omitted when empty", key)
		}
	}
}

func TestFingerprint_Stable(t *testing.T) {
	catalog := func() []protocol.Tool {
		return []protocol.Tool{
			{
				Name:        "b_tool",
				Description: "second",
				Parameters: map[string]any{
					"type":       "object",
					"required":   []string{"z", "a"},
					"properties": map[string]any{"z": map[string]any{"type": "string"}, "a": map[string]any{"type": "integer"}},
				},
			},
			{Name: "a_tool", Description: "first", Parameters: map[string]any{"type": "object"}},
		}
	}

	first := protocol.Fingerprint(catalog())
	for range 10 {
		if got := protocol.Fingerprint(catalog()); got != first {
			t.Fatalf("fingerprint changed: %s != %s", got, first)
		}
	}

	reordered := catalog()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	if protocol.Fingerprint(reordered) == first {
		t.Error("expected reordered catalog to produce a different fingerprint")
	}
}
