package openaiagent

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow-dev/workflow/graph/agent"
)

func TestAgent_Construction(t *testing.T) {
	t.Run("creates agent with API key", func(t *testing.T) {
		if a := New("test-api-key", "gpt-4"); a == nil {
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
		mockClient := &mockClient{response: "Hello! How can I help you?"}
		a := &Agent{client: mockClient, modelName: "gpt-4", maxRetries: 3}

		messages := []agent.Message{
			{Role: agent.RoleSystem, Content: "You are helpful."},
			{Role: agent.RoleUser, Content: "Hi there!"},
		}
		resp, err := a.Run(context.Background(), messages, nil, agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Text != "Hello! How can I help you?" {
			t.Errorf("expected specific text, got %q", resp.Text)
		}
		if mockClient.callCount != 1 {
			t.Errorf("expected 1 API call, got %d", mockClient.callCount)
		}
	})

	t.Run("handles tool calls in response", func(t *testing.T) {
		mockClient := &mockClient{toolCalls: []agent.ToolCall{{Name: "search", Input: map[string]interface{}{"query": "test"}}}}
		a := &Agent{client: mockClient, modelName: "gpt-4", maxRetries: 3}

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
		a := &Agent{client: mockClient, modelName: "gpt-4", maxRetries: 3}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := a.Run(ctx, []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, nil, agent.RunOptions{})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestAgent_RetryLogic(t *testing.T) {
	t.Run("retries on transient errors", func(t *testing.T) {
		mockClient := &mockClient{
			errors:   []error{errors.New("temporary network error"), errors.New("timeout"), nil},
			response: "Success after retries",
		}
		a := &Agent{client: mockClient, modelName: "gpt-4", maxRetries: 3}

		resp, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, nil, agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected success after retries, got %v", err)
		}
		if resp.Text != "Success after retries" {
			t.Errorf("expected success response, got %q", resp.Text)
		}
		if mockClient.callCount != 3 {
			t.Errorf("expected 3 attempts, got %d", mockClient.callCount)
		}
	})

	t.Run("does not retry on non-transient errors", func(t *testing.T) {
		mockClient := &mockClient{err: errors.New("invalid API key")}
		a := &Agent{client: mockClient, modelName: "gpt-4", maxRetries: 3}

		_, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, nil, agent.RunOptions{})
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if mockClient.callCount != 1 {
			t.Errorf("expected 1 attempt, got %d", mockClient.callCount)
		}
	})

	t.Run("respects max retries limit", func(t *testing.T) {
		mockClient := &mockClient{err: &rateLimitError{message: "rate limit"}}
		a := &Agent{client: mockClient, modelName: "gpt-4", maxRetries: 2}

		_, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, nil, agent.RunOptions{})
		if err == nil {
			t.Fatal("expected error after max retries, got nil")
		}
		if mockClient.callCount != 3 {
			t.Errorf("expected 3 attempts, got %d", mockClient.callCount)
		}
	})
}

func TestAgent_RunStream(t *testing.T) {
	t.Run("delivers a single done update", func(t *testing.T) {
		mockClient := &mockClient{response: "Streamed text"}
		a := &Agent{client: mockClient, modelName: "gpt-4", maxRetries: 3}

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
	errors       []error
	callCount    int
	lastMessages []agent.Message
}

func (m *mockClient) createChatCompletion(_ context.Context, messages []agent.Message, _ []agent.ToolSpec) (agent.Response, error) {
	m.callCount++
	m.lastMessages = messages

	if len(m.errors) > 0 {
		if m.callCount <= len(m.errors) {
			if err := m.errors[m.callCount-1]; err != nil {
				return agent.Response{}, err
			}
		}
	} else if m.err != nil {
		return agent.Response{}, m.err
	}

	return agent.Response{Text: m.response, ToolCalls: m.toolCalls}, nil
}
