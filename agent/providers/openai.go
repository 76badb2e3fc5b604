package providers

import (
	"context"
	"fmt"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tailored-agentic-units/incidentdesk/agent"
	"github.com/tailored-agentic-units/incidentdesk/core/protocol"
)

// OpenAI is a chat-completions engine for both Azure OpenAI deployments and
// the OpenAI API.
type OpenAI struct {
	id     string
	client *openai.Client
	cfg    agent.Config
}

// NewAzure creates an engine for an Azure OpenAI deployment. BaseURL is the
// resource endpoint; requests are routed to Deployment, or Model when no
// deployment is named.
func NewAzure(cfg *agent.Config) (agent.Agent, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("azure: %w", ErrMissingEndpoint)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("azure: %w", ErrMissingAPIKey)
	}

	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
	if cfg.APIVersion != "" {
		clientConfig.APIVersion = cfg.APIVersion
	}
	deployment := cfg.Deployment
	if deployment == "" {
		deployment = cfg.Model
	}
	clientConfig.AzureModelMapperFunc = func(string) string {
		return deployment
	}

	return &OpenAI{
		id:     "azure/" + deployment,
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    *cfg,
	}, nil
}

// NewOpenAI creates an engine for the OpenAI API or any compatible endpoint
// named by BaseURL.
func NewOpenAI(cfg *agent.Config) (agent.Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		id:     "openai/" + cfg.Model,
		client: openai.NewClientWithConfig(clientConfig),
		cfg:    *cfg,
	}, nil
}

func (p *OpenAI) ID() string { return p.id }

func (p *OpenAI) Decide(ctx context.Context, req agent.Request) (agent.Decision, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.cfg.Model,
		Messages:    convertMessages(req.Messages()),
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: temperature(p.cfg.Temperature),
	}
	if len(req.Catalog) > 0 {
		chatReq.Tools = convertTools(req.Catalog)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return agent.Decision{}, fmt.Errorf("%s: %w", p.id, err)
	}
	if len(resp.Choices) == 0 {
		return agent.Decision{}, fmt.Errorf("%s: %w", p.id, ErrEmptyReply)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return agent.FinalAnswer(msg.Content), nil
	}

	calls := make([]protocol.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		calls[i] = protocol.ToolCall{
			ID:        callID(tc.ID),
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
	}
	return agent.ToolCalls(calls...), nil
}

// temperature maps 0 onto the smallest non-zero value; the request field is
// omitted when zero and the service default is not deterministic.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func convertMessages(messages []protocol.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		switch msg.Role {
		case protocol.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   tc.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      tc.Name,
							Arguments: string(inputValue(tc)),
						},
					}
				}
			}
		case protocol.RoleTool:
			oaiMsg.ToolCallID = msg.ToolCallID
		}

		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(catalog []protocol.Tool) []openai.Tool {
	result := make([]openai.Tool, len(catalog))
	for i, tool := range catalog {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schemaMap(tool),
			},
		}
	}
	return result
}
