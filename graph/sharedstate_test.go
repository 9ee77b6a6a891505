package graph

import (
	"context"
	"errors"
	"testing"
)

func TestSharedStateGetSetDelete(t *testing.T) {
	s := NewSharedState()
	if _, ok := s.Get("missing"); ok {
		t.Error("expected missing key to report not-present")
	}
	s.Set("k", 1)
	v, ok := s.Get("k")
	if !ok || v != 1 {
		t.Fatalf("expected Get to return the set value, got %v, %v", v, ok)
	}
	s.Delete("k")
	if s.Has("k") {
		t.Error("expected key to be gone after Delete")
	}
}

func TestSharedStateHoldAtomicity(t *testing.T) {
	s := NewSharedState()
	err := s.Hold(context.Background(), func(ctx context.Context, h *HeldState) error {
		h.Set("a", 1)
		h.Set("b", 2)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := s.Get("a"); v != 1 {
		t.Error("expected a=1 after Hold")
	}
	if v, _ := s.Get("b"); v != 2 {
		t.Error("expected b=2 after Hold")
	}
}

func TestSharedStateNestedHoldRejected(t *testing.T) {
	s := NewSharedState()
	err := s.Hold(context.Background(), func(ctx context.Context, h *HeldState) error {
		return s.Hold(ctx, func(ctx context.Context, h *HeldState) error { return nil })
	})
	if !errors.Is(err, ErrNestedHold) {
		t.Fatalf("expected ErrNestedHold from a nested Hold call, got %v", err)
	}
}

func TestSharedStateReplaceIsTotal(t *testing.T) {
	s := NewSharedState()
	s.Set("stale", true)
	s.Replace(map[string]any{"fresh": true})
	if s.Has("stale") {
		t.Error("expected Replace to discard prior keys entirely")
	}
	if !s.Has("fresh") {
		t.Error("expected Replace to install the new keys")
	}
}
