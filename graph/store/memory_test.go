package store

import (
	"context"
	"errors"
	"testing"

	"github.com/agentflow-dev/workflow/graph"
)

func TestMemoryStoreSaveLoadRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	cp := graph.WorkflowCheckpoint{WorkflowID: "wf-1", IterationCount: 3, SharedState: map[string]any{"k": "v"}}

	id, err := s.SaveCheckpoint(context.Background(), cp)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	got, err := s.LoadCheckpoint(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if got.WorkflowID != "wf-1" || got.IterationCount != 3 {
		t.Fatalf("expected round-tripped checkpoint, got %+v", got)
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.LoadCheckpoint(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreListCheckpointsOrdered(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, n := range []int{2, 0, 1} {
		if _, err := s.SaveCheckpoint(ctx, graph.WorkflowCheckpoint{WorkflowID: "wf-1", IterationCount: n}); err != nil {
			t.Fatalf("unexpected save error: %v", err)
		}
	}
	if _, err := s.SaveCheckpoint(ctx, graph.WorkflowCheckpoint{WorkflowID: "wf-2", IterationCount: 0}); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	ids, err := s.ListCheckpoints(ctx, "wf-1")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 checkpoints for wf-1, got %d", len(ids))
	}
	for i, id := range ids {
		cp, err := s.LoadCheckpoint(ctx, id)
		if err != nil {
			t.Fatalf("unexpected load error: %v", err)
		}
		if cp.IterationCount != i {
			t.Fatalf("expected ascending iteration order, got %d at position %d", cp.IterationCount, i)
		}
	}
}
