package mockagent

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow-dev/workflow/graph/agent"
)

func TestAgent_SingleResponse(t *testing.T) {
	t.Run("returns configured response", func(t *testing.T) {
		a := New(agent.Response{Text: "Hello, world!"})

		resp, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Hi"}}, a.NewThread(), agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Text != "Hello, world!" {
			t.Errorf("expected 'Hello, world!', got %q", resp.Text)
		}
	})

	t.Run("repeats last response when exhausted", func(t *testing.T) {
		a := New(agent.Response{Text: "Only response"})
		thread := a.NewThread()
		messages := []agent.Message{{Role: agent.RoleUser, Content: "Test"}}

		out1, _ := a.Run(context.Background(), messages, thread, agent.RunOptions{})
		out2, _ := a.Run(context.Background(), messages, thread, agent.RunOptions{})
		if out1.Text != out2.Text {
			t.Errorf("expected same response, got %q and %q", out1.Text, out2.Text)
		}
	})

	t.Run("returns empty response when none configured", func(t *testing.T) {
		a := New()
		resp, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, a.NewThread(), agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Text != "" || len(resp.ToolCalls) != 0 {
			t.Errorf("expected zero-value response, got %+v", resp)
		}
	})
}

func TestAgent_MultipleResponses(t *testing.T) {
	t.Run("returns responses in sequence then repeats the last", func(t *testing.T) {
		a := New(agent.Response{Text: "First"}, agent.Response{Text: "Second"}, agent.Response{Text: "Third"})
		thread := a.NewThread()
		messages := []agent.Message{{Role: agent.RoleUser, Content: "Test"}}

		want := []string{"First", "Second", "Third", "Third"}
		for i, w := range want {
			resp, err := a.Run(context.Background(), messages, thread, agent.RunOptions{})
			if err != nil {
				t.Fatalf("call %d failed: %v", i, err)
			}
			if resp.Text != w {
				t.Errorf("call %d: expected %q, got %q", i, w, resp.Text)
			}
		}
	})
}

func TestAgent_ErrorInjection(t *testing.T) {
	t.Run("returns configured error and still records the call", func(t *testing.T) {
		expectedErr := errors.New("simulated API error")
		a := New(agent.Response{Text: "Should not be returned"})
		a.Err = expectedErr

		_, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Test"}}, a.NewThread(), agent.RunOptions{})
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected %v, got %v", expectedErr, err)
		}
		if a.CallCount() != 1 {
			t.Errorf("expected 1 call recorded, got %d", a.CallCount())
		}
	})
}

func TestAgent_CallHistoryAndReset(t *testing.T) {
	t.Run("records calls and resets cleanly", func(t *testing.T) {
		a := New(agent.Response{Text: "OK"})
		thread := a.NewThread()
		messages1 := []agent.Message{{Role: agent.RoleUser, Content: "First"}}
		messages2 := []agent.Message{{Role: agent.RoleUser, Content: "Second"}}
		tools := []agent.ToolSpec{{Name: "search"}}

		_, _ = a.Run(context.Background(), messages1, thread, agent.RunOptions{})
		_, _ = a.Run(context.Background(), messages2, thread, agent.RunOptions{Tools: tools})

		if a.CallCount() != 2 {
			t.Fatalf("expected 2 calls, got %d", a.CallCount())
		}
		calls := a.Calls()
		if calls[0].Messages[0].Content != "First" {
			t.Errorf("call 0: expected content 'First', got %q", calls[0].Messages[0].Content)
		}
		if len(calls[1].Options.Tools) != 1 {
			t.Errorf("call 1: expected 1 tool, got %d", len(calls[1].Options.Tools))
		}

		a.Reset()
		if a.CallCount() != 0 {
			t.Errorf("expected 0 calls after reset, got %d", a.CallCount())
		}
	})
}

func TestAgent_RunStream(t *testing.T) {
	t.Run("delivers the configured response as a single done update", func(t *testing.T) {
		a := New(agent.Response{Text: "Streamed"})
		updates, err := a.RunStream(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Hi"}}, a.NewThread(), agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var last agent.ResponseUpdate
		count := 0
		for u := range updates {
			last = u
			count++
		}
		if count != 1 || !last.Done || last.TextDelta != "Streamed" {
			t.Errorf("unexpected stream result: count=%d last=%+v", count, last)
		}
	})
}

func TestAgent_ToolCalls(t *testing.T) {
	t.Run("returns both text and tool calls", func(t *testing.T) {
		a := New(agent.Response{
			Text:      "Let me search for that.",
			ToolCalls: []agent.ToolCall{{Name: "search", Input: map[string]interface{}{"query": "test"}}},
		})
		resp, err := a.Run(context.Background(), []agent.Message{{Role: agent.RoleUser, Content: "Find test"}}, a.NewThread(), agent.RunOptions{})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if resp.Text != "Let me search for that." {
			t.Errorf("unexpected text %q", resp.Text)
		}
		if len(resp.ToolCalls) != 1 {
			t.Errorf("expected 1 tool call, got %d", len(resp.ToolCalls))
		}
	})
}

func TestAgent_Concurrency(t *testing.T) {
	t.Run("handles concurrent calls safely", func(t *testing.T) {
		a := New(agent.Response{Text: "OK"})
		thread := a.NewThread()
		messages := []agent.Message{{Role: agent.RoleUser, Content: "Test"}}

		const goroutines = 10
		done := make(chan bool, goroutines)
		for i := 0; i < goroutines; i++ {
			go func() {
				_, _ = a.Run(context.Background(), messages, thread, agent.RunOptions{})
				done <- true
			}()
		}
		for i := 0; i < goroutines; i++ {
			<-done
		}
		if a.CallCount() != goroutines {
			t.Errorf("expected %d calls, got %d", goroutines, a.CallCount())
		}
	})
}
