// Package anthropicagent adapts Anthropic's Claude API to the agent.Agent
// interface.
package anthropicagent

import (
	"context"
	"errors"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentflow-dev/workflow/graph/agent"
)

// Agent runs turns against Claude models (Sonnet, Opus, Haiku).
type Agent struct {
	modelName string
	client    anthropicClient
}

// anthropicClient isolates the SDK call for mocking in tests.
type anthropicClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []agent.Message, tools []agent.ToolSpec) (agent.Response, error)
}

// New constructs an Agent. An empty modelName defaults to
// "claude-sonnet-4-5-20250929".
func New(apiKey, modelName string) *Agent {
	if modelName == "" {
		modelName = "claude-sonnet-4-5-20250929"
	}
	return &Agent{
		modelName: modelName,
		client:    &defaultClient{apiKey: apiKey, modelName: modelName},
	}
}

func (a *Agent) NewThread() *agent.Thread { return agent.NewThread() }

func (a *Agent) Run(ctx context.Context, messages []agent.Message, thread *agent.Thread, opts agent.RunOptions) (*agent.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	systemPrompt, conversation := extractSystemPrompt(messages)
	out, err := a.client.createMessage(ctx, systemPrompt, conversation, opts.Tools)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return nil, translateAPIError(apiErr)
		}
		return nil, err
	}
	return &out, nil
}

// RunStream has no native streaming call wired here: the Messages API
// round trip this adapter uses is request/response, so RunStream delivers
// the full Run result as a single Done update.
func (a *Agent) RunStream(ctx context.Context, messages []agent.Message, thread *agent.Thread, opts agent.RunOptions) (<-chan agent.ResponseUpdate, error) {
	resp, err := a.Run(ctx, messages, thread, opts)
	if err != nil {
		return nil, err
	}
	ch := make(chan agent.ResponseUpdate, 1)
	ch <- agent.ResponseUpdate{TextDelta: resp.Text, Done: true}
	close(ch)
	return ch, nil
}

// extractSystemPrompt pulls system messages out of the conversation since
// Anthropic's API expects the system prompt as a separate parameter.
func extractSystemPrompt(messages []agent.Message) (string, []agent.Message) {
	var systemPrompt string
	var conversation []agent.Message

	for _, msg := range messages {
		if msg.Role == agent.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
			continue
		}
		conversation = append(conversation, msg)
	}
	return systemPrompt, conversation
}

func translateAPIError(err *apiError) error { return err }

type apiError struct {
	Type    string
	Message string
}

func (e *apiError) Error() string { return e.Type + ": " + e.Message }

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createMessage(ctx context.Context, systemPrompt string, messages []agent.Message, tools []agent.ToolSpec) (agent.Response, error) {
	if c.apiKey == "" {
		return agent.Response{}, errors.New("anthropic API key is required")
	}

	client := anthropicsdk.NewClient(option.WithAPIKey(c.apiKey))

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(c.modelName),
		Messages:  convertMessages(messages),
		MaxTokens: 4096,
	}
	if systemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Messages.New(ctx, params)
	if err != nil {
		return agent.Response{}, fmt.Errorf("anthropic API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []agent.Message) []anthropicsdk.MessageParam {
	result := make([]anthropicsdk.MessageParam, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case agent.RoleAssistant:
			result[i] = anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(msg.Content))
		default:
			result[i] = anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(msg.Content))
		}
	}
	return result
}

func convertTools(tools []agent.ToolSpec) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, len(tools))
	for i, tool := range tools {
		var properties any
		var required []string
		if tool.Schema != nil {
			if props, ok := tool.Schema["properties"]; ok {
				properties = props
			}
			if req, ok := tool.Schema["required"].([]string); ok {
				required = req
			} else if req, ok := tool.Schema["required"].([]interface{}); ok {
				required = make([]string, len(req))
				for j, v := range req {
					if s, ok := v.(string); ok {
						required[j] = s
					}
				}
			}
		}

		result[i] = anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        tool.Name,
				Description: anthropicsdk.String(tool.Description),
				InputSchema: anthropicsdk.ToolInputSchemaParam{
					Properties: properties,
					Required:   required,
				},
			},
		}
	}
	return result
}

func convertResponse(resp *anthropicsdk.Message) agent.Response {
	out := agent.Response{}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += b.Text
		case anthropicsdk.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, agent.ToolCall{
				Name:  b.Name,
				Input: convertToolInput(b.Input),
			})
		}
	}
	return out
}

func convertToolInput(input interface{}) map[string]interface{} {
	if input == nil {
		return nil
	}
	if m, ok := input.(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{"_raw": input}
}
