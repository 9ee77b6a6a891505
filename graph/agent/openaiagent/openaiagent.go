// Package openaiagent adapts OpenAI's chat completions API to the
// agent.Agent interface.
package openaiagent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/agentflow-dev/workflow/graph/agent"
)

// Agent runs turns against OpenAI chat models (GPT-4o and friends), with
// retry on transient errors built in.
type Agent struct {
	modelName  string
	client     openaiClient
	maxRetries int
	retryDelay time.Duration
}

type openaiClient interface {
	createChatCompletion(ctx context.Context, messages []agent.Message, tools []agent.ToolSpec) (agent.Response, error)
}

// New constructs an Agent. An empty modelName defaults to "gpt-4o".
func New(apiKey, modelName string) *Agent {
	if modelName == "" {
		modelName = "gpt-4o"
	}
	return &Agent{
		modelName:  modelName,
		client:     &defaultClient{apiKey: apiKey, modelName: modelName},
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

func (a *Agent) NewThread() *agent.Thread { return agent.NewThread() }

func (a *Agent) Run(ctx context.Context, messages []agent.Message, thread *agent.Thread, opts agent.RunOptions) (*agent.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		out, err := a.client.createChatCompletion(ctx, messages, opts.Tools)
		if err == nil {
			return &out, nil
		}
		lastErr = err

		if !isTransientError(err) {
			return nil, err
		}
		if attempt >= a.maxRetries {
			break
		}

		delay := a.retryDelay
		if isRateLimitError(err) {
			delay = a.retryDelay * time.Duration(attempt+1)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("openai: failed after %d retries: %w", a.maxRetries, lastErr)
}

// RunStream adapts Run into a single-update channel; this adapter's
// underlying call is the non-streaming chat completions endpoint.
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

func isTransientError(err error) bool {
	if err == nil {
		return false
	}
	var rateLimitErr *rateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}
	msgLower := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "network", "connection", "temporary", "503", "502", "500"} {
		if strings.Contains(msgLower, pattern) {
			return true
		}
	}
	return false
}

func isRateLimitError(err error) bool {
	var rateLimitErr *rateLimitError
	return errors.As(err, &rateLimitErr)
}

type rateLimitError struct{ message string }

func (e *rateLimitError) Error() string { return e.message }

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) createChatCompletion(ctx context.Context, messages []agent.Message, tools []agent.ToolSpec) (agent.Response, error) {
	if c.apiKey == "" {
		return agent.Response{}, errors.New("openai API key is required")
	}

	client := openaisdk.NewClient(option.WithAPIKey(c.apiKey))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.modelName),
		Messages: convertMessages(messages),
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return agent.Response{}, fmt.Errorf("openai API error: %w", err)
	}
	return convertResponse(resp), nil
}

func convertMessages(messages []agent.Message) []openaisdk.ChatCompletionMessageParamUnion {
	result := make([]openaisdk.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case agent.RoleSystem:
			result[i] = openaisdk.SystemMessage(msg.Content)
		case agent.RoleAssistant:
			result[i] = openaisdk.AssistantMessage(msg.Content)
		default:
			result[i] = openaisdk.UserMessage(msg.Content)
		}
	}
	return result
}

func convertTools(tools []agent.ToolSpec) []openaisdk.ChatCompletionToolParam {
	result := make([]openaisdk.ChatCompletionToolParam, len(tools))
	for i, tool := range tools {
		result[i] = openaisdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openaisdk.String(tool.Description),
				Parameters:  shared.FunctionParameters(tool.Schema),
			},
		}
	}
	return result
}

func convertResponse(resp *openaisdk.ChatCompletion) agent.Response {
	out := agent.Response{}
	if len(resp.Choices) == 0 {
		return out
	}

	msg := resp.Choices[0].Message
	out.Text = msg.Content
	if len(msg.ToolCalls) > 0 {
		out.ToolCalls = make([]agent.ToolCall, len(msg.ToolCalls))
		for i, tc := range msg.ToolCalls {
			out.ToolCalls[i] = agent.ToolCall{
				Name:  tc.Function.Name,
				Input: parseToolInput(tc.Function.Arguments),
			}
		}
	}
	return out
}

// parseToolInput carries the raw JSON arguments string through as a single
// field rather than decoding it, leaving schema-aware parsing to callers
// that know the tool's expected argument shape.
func parseToolInput(jsonStr string) map[string]interface{} {
	if jsonStr == "" {
		return nil
	}
	return map[string]interface{}{"_raw": jsonStr}
}
