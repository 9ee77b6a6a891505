// Package googleagent adapts Google's Gemini API to the agent.Agent
// interface.
package googleagent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/agentflow-dev/workflow/graph/agent"
)

// Agent runs turns against Gemini models, translating safety filter blocks
// into a SafetyFilterError callers can check with errors.As.
type Agent struct {
	modelName string
	client    googleClient
}

type googleClient interface {
	generateContent(ctx context.Context, messages []agent.Message, tools []agent.ToolSpec) (agent.Response, error)
}

// New constructs an Agent. An empty modelName defaults to
// "gemini-2.5-flash".
func New(apiKey, modelName string) *Agent {
	if modelName == "" {
		modelName = "gemini-2.5-flash"
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

	out, err := a.client.generateContent(ctx, messages, opts.Tools)
	if err != nil {
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			return nil, safetyErr
		}
		return nil, err
	}
	return &out, nil
}

// RunStream adapts Run into a single-update channel; the client call this
// adapter makes is a single GenerateContent round trip.
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

// SafetyFilterError represents a Gemini safety filter block. Use
// errors.As to check for it specifically.
type SafetyFilterError struct {
	reason   string
	category string
}

func (e *SafetyFilterError) Error() string {
	return "content blocked by safety filter: " + e.category
}

func (e *SafetyFilterError) Category() string { return e.category }
func (e *SafetyFilterError) Reason() string   { return e.reason }

type defaultClient struct {
	apiKey    string
	modelName string
}

func (c *defaultClient) generateContent(ctx context.Context, messages []agent.Message, tools []agent.ToolSpec) (agent.Response, error) {
	if c.apiKey == "" {
		return agent.Response{}, errors.New("google API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return agent.Response{}, fmt.Errorf("failed to create google client: %w", err)
	}
	defer func() { _ = client.Close() }()

	genModel := client.GenerativeModel(c.modelName)
	if len(tools) > 0 {
		genModel.Tools = convertTools(tools)
	}

	resp, err := genModel.GenerateContent(ctx, convertMessages(messages)...)
	if err != nil {
		return agent.Response{}, fmt.Errorf("google API error: %w", err)
	}
	return convertResponse(resp), nil
}

// convertMessages combines every message's content into parts. Gemini has
// no per-message role field on the wire the way Anthropic/OpenAI do;
// system instructions would be set on the model itself rather than mixed
// into the part list, but this adapter keeps parity with what the wrapped
// call supports today.
func convertMessages(messages []agent.Message) []genai.Part {
	var parts []genai.Part
	for _, msg := range messages {
		if msg.Content != "" {
			parts = append(parts, genai.Text(msg.Content))
		}
	}
	return parts
}

func convertTools(tools []agent.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema)
		for key, val := range props {
			propMap, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			propSchema := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				propSchema.Type = convertTypeString(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				propSchema.Description = desc
			}
			properties[key] = propSchema
		}
		result.Properties = properties
	}

	if required, ok := schema["required"].([]string); ok {
		result.Required = required
	} else if required, ok := schema["required"].([]interface{}); ok {
		requiredStrs := make([]string, len(required))
		for i, v := range required {
			if s, ok := v.(string); ok {
				requiredStrs[i] = s
			}
		}
		result.Required = requiredStrs
	}
	return result
}

func convertResponse(resp *genai.GenerateContentResponse) agent.Response {
	out := agent.Response{}
	if len(resp.Candidates) == 0 {
		return out
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		return out
	}

	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, agent.ToolCall{
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}
	return out
}

func convertTypeString(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
