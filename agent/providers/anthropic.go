package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

// Anthropic is a Claude Messages API engine.
type Anthropic struct {
	id     string
	client anthropic.Client
	cfg    agent.Config
}

// NewAnthropic creates an engine for the Anthropic Messages API.
func NewAnthropic(cfg *agent.Config) (agent.Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		id:     "anthropic/" + cfg.Model,
		client: anthropic.NewClient(options...),
		cfg:    *cfg,
	}, nil
}

func (p *Anthropic) ID() string { return p.id }

func (p *Anthropic) Decide(ctx context.Context, req agent.Request) (agent.Decision, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.cfg.Model),
		Messages:    convertAnthropicMessages(req.Messages()),
		MaxTokens:   int64(p.cfg.MaxTokens),
		Temperature: anthropic.Float(p.cfg.Temperature),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if len(req.Catalog) > 0 {
		tools, err := convertAnthropicTools(req.Catalog)
		if err != nil {
			return agent.Decision{}, fmt.Errorf("%s: %w", p.id, err)
		}
		params.Tools = tools
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("%s: %w", p.id, err)
	}

	var text strings.Builder
	var calls []protocol.ToolCall
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.AsText().Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			calls = append(calls, protocol.ToolCall{
				ID:        callID(toolUse.ID),
				Name:      toolUse.Name,
				Arguments: string(toolUse.Input),
			})
		}
	}

	if len(calls) > 0 {
		return agent.ToolCalls(calls...), nil
	}
	return agent.FinalAnswer(text.String()), nil
}

// convertAnthropicMessages maps the flattened conversation onto Messages API
// turns. System messages travel in params.System. Consecutive tool results
// are merged into a single user turn.
func convertAnthropicMessages(messages []protocol.Message) []anthropic.MessageParam {
	var result []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			result = append(result, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case protocol.RoleSystem:
			continue
		case protocol.RoleTool:
			pending = append(pending, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
			continue
		}

		flush()

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, tc := range msg.ToolCalls {
			content = append(content, anthropic.NewToolUseBlock(tc.ID, inputValue(tc), tc.Name))
		}

		if msg.Role == protocol.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	flush()

	return result
}

func convertAnthropicTools(catalog []protocol.Tool) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(catalog))
	for _, tool := range catalog {
		data, err := json.Marshal(schemaMap(tool))
		if err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}

		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}

		param := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		param.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, param)
	}
	return result, nil
}
