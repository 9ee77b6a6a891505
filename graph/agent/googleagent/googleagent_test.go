package googleagent

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow-dev/workflow/graph/agent"
)

func TestAgent_Construction(t *testing.T) {
	t.Run("creates agent with API key", func(t *testing.T) {
		if a := New("test-api-key", "gemini-pro"); a == nil {
			t.Fatal("expected non-nil agent")
		}
	})

	t.Run("creates agent with default model name", func(t *testing.T) {
		if a := New("test-api-key", ""); a == nil {
			t.Fatal("expected non-nil agent")
		}
	})
}

func TestAgent_Run(t *testing.T) {
	t.Run("sends messages and returns response", func(t *testing.T) {
		mockClient := &mockClient{response: "Hello! I'm Gemini, a helpful AI assistant."}
		a := &Agent{client: mockClient, modelName: "gemini-pro"}

		resp, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Hi there!"}}, nil, agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Text != "Hello! I'm Gemini, a helpful AI assistant." {
			t.Errorf("expected specific text, got %q", resp.Text)
		}
		if mockClient.callCount != 1 {
			t.Errorf("expected 1 API call, got %d", mockClient.callCount)
		}
	})

	t.Run("handles tool calls in response", func(t *testing.T) {
		mockClient := &mockClient{toolCalls: []agent.ToolCall{{Name: "search", Input: map[string]interface{}{"query": "test"}}}}
		a := &Agent{client: mockClient, modelName: "gemini-pro"}

		opts := agent.RunOptions{Tools: []agent.ToolSpec{{Name: "search", Description: "Search the web"}}}
		resp, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Search for test"}}, nil, opts)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "search" {
			t.Fatalf("expected 1 tool call named search, got %+v", resp.ToolCalls)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		mockClient := &mockClient{response: "Response"}
		a := &Agent{client: mockClient, modelName: "gemini-pro"}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := a.Run(ctx, []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, nil, agent.RunOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestAgent_SafetyFilters(t *testing.T) {
	t.Run("surfaces SafetyFilterError distinctly", func(t *testing.T) {
		mockClient := &mockClient{err: &SafetyFilterError{reason: "SAFETY", category: "HARM_CATEGORY_DANGEROUS_CONTENT"}}
		a := &Agent{client: mockClient, modelName: "gemini-pro"}

		_, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Dangerous content"}}, nil, agent.RunOptions{})
		var safetyErr *SafetyFilterError
		if !errors.As(err, &safetyErr) {
			t.Fatalf("expected SafetyFilterError, got %T", err)
		}
		if safetyErr.Category() != "HARM_CATEGORY_DANGEROUS_CONTENT" {
			t.Errorf("expected specific category, got %q", safetyErr.Category())
		}
	})

	t.Run("passes through non-safety errors", func(t *testing.T) {
		mockClient := &mockClient{err: errors.New("API error: quota exceeded")}
		a := &Agent{client: mockClient, modelName: "gemini-pro"}

		_, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, nil, agent.RunOptions{})
		var safetyErr *SafetyFilterError
		if errors.As(err, &safetyErr) {
			t.Error("expected non-safety error, got SafetyFilterError")
		}
	})
}

func TestAgent_RunStream(t *testing.T) {
	t.Run("delivers a single done update", func(t *testing.T) {
		mockClient := &mockClient{response: "Streamed text"}
		a := &Agent{client: mockClient, modelName: "gemini-pro"}

		updates, err := a.RunStream(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Hi"}}, nil, agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var last agent.ResponseUpdate
		count := 0
		for u := range updates {
			last = u
			count++
		}
		if count != 1 || !last.Done || last.TextDelta != "Streamed text" {
			t.Errorf("unexpected stream result: count=%d last=%+v", count, last)
		}
	})
}

type mockClient struct {
	response     string
	toolCalls    []agent.ToolCall
	err          error
	callCount    int
	lastMessages []agent.Message
}

func (m *mockClient) generateContent(_ context.Context, messages []agent.Message, _ []agent.ToolSpec) (agent.Response, error) {
	m.callCount++
	m.lastMessages = messages
	if m.err != nil {
		return agent.Response{}, m.err
	}
	return agent.Response{Text: m.response, ToolCalls: m.toolCalls}, nil
}
