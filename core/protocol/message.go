package protocol

import (
	"encoding/json"
	"strings"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// IsTurn reports whether the role may appear in a session transcript.
// Transcripts only ever hold user and assistant text; system and tool
// messages are rebuilt for each reasoning step.
func (r Role) IsTurn() bool {
	return r == RoleUser || r == RoleAssistant
}

// ToolCall is one tool invocation requested by the reasoning step.
// Arguments holds the raw JSON object text exactly as the model produced it;
// it is validated against the tool schema before anything runs.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// RawArguments returns the call arguments as JSON, substituting an empty
// object when the model sent nothing.
func (tc ToolCall) RawArguments() json.RawMessage {
	args := strings.TrimSpace(tc.Arguments)
	if args == "" {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}

// UnmarshalJSON accepts both the flat form ({id, name, arguments}) and the
// nested chat-completions form ({id, function: {name, arguments}}).
// Arguments may be a JSON string or an inline object.
func (tc *ToolCall) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
		Function  *struct {
			Name      string          `json:"name"`
			Arguments json.RawMessage `json:"arguments"`
		} `json:"function"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	tc.ID = wire.ID
	tc.Name = wire.Name
	raw := wire.Arguments
	if wire.Function != nil && wire.Function.Name != "" {
		tc.Name = wire.Function.Name
		raw = wire.Function.Arguments
	}

	args, err := argumentText(raw)
	if err != nil {
		return err
	}
	tc.Arguments = args
	return nil
}

func argumentText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	return string(raw), nil
}

// Message is one entry of the conversation handed to a reasoning engine.
// Assistant messages may carry ToolCalls; tool messages carry the
// ToolCallID of the request they answer.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// NewMessage creates a text Message with the given role.
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}
