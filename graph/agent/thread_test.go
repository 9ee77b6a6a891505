package agent

import "testing"

func TestThread_SerializeRoundTrip(t *testing.T) {
	t.Run("round-trips id and messages through JSON", func(t *testing.T) {
		thread := NewThread()
		thread.Append(
			Message{Role: RoleUser, Content: "hello"},
			Message{Role: RoleAssistant, Content: "hi there"},
		)

		data, err := thread.Serialize(nil)
		if err != nil {
			t.Fatalf("serialize failed: %v", err)
		}

		restored, err := DeserializeThread(data, nil)
		if err != nil {
			t.Fatalf("deserialize failed: %v", err)
		}

		if restored.ID != thread.ID {
			t.Errorf("expected id %q, got %q", thread.ID, restored.ID)
		}
		if len(restored.Messages) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(restored.Messages))
		}
		if restored.Messages[1].Content != "hi there" {
			t.Errorf("expected second message preserved, got %q", restored.Messages[1].Content)
		}
	})
}

func TestThread_Append(t *testing.T) {
	t.Run("preserves insertion order", func(t *testing.T) {
		thread := NewThread()
		thread.Append(Message{Role: RoleUser, Content: "a"})
		thread.Append(Message{Role: RoleUser, Content: "b"}, Message{Role: RoleAssistant, Content: "c"})

		if len(thread.Messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(thread.Messages))
		}
		if thread.Messages[0].Content != "a" || thread.Messages[2].Content != "c" {
			t.Errorf("unexpected order: %+v", thread.Messages)
		}
	})
}

func TestNewThread_UniqueIDs(t *testing.T) {
	t.Run("generates distinct ids", func(t *testing.T) {
		a, b := NewThread(), NewThread()
		if a.ID == b.ID {
			t.Error("expected distinct thread ids")
		}
	})
}
