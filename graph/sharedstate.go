package graph

import (
	"context"
	"sync"
)

// SharedState is the single process-wide mutable surface every executor in
// a workflow may read and write, guarded by one mutual-exclusion region
// (spec.md §3, §5).
type SharedState struct {
	mu   sync.Mutex
	data map[string]any
}

// NewSharedState constructs an empty SharedState.
func NewSharedState() *SharedState {
	return &SharedState{data: map[string]any{}}
}

// Get returns the value stored under key and whether it was present.
func (s *SharedState) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key.
func (s *SharedState) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// Has reports whether key is present.
func (s *SharedState) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Delete removes key, if present.
func (s *SharedState) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// Snapshot returns a shallow copy of the entire map, used by the checkpoint
// engine to capture shared state at a superstep boundary.
func (s *SharedState) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Replace performs a total replacement of the shared-state map — never a
// merge — matching the checkpoint-restore invariant of spec.md §3.
func (s *SharedState) Replace(m map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == nil {
		m = map[string]any{}
	}
	s.data = m
}

type holdKeyType struct{}

var holdKey = holdKeyType{}

// HeldState exposes the unsafe, lock-already-held read/write operations
// available only from inside a Hold callback.
type HeldState struct {
	s *SharedState
}

func (h *HeldState) Get(key string) (any, bool) {
	v, ok := h.s.data[key]
	return v, ok
}

func (h *HeldState) Set(key string, value any) { h.s.data[key] = value }

func (h *HeldState) Has(key string) bool {
	_, ok := h.s.data[key]
	return ok
}

func (h *HeldState) Delete(key string) { delete(h.s.data, key) }

// Hold acquires SharedState's mutual-exclusion region for the duration of
// fn, giving the caller a consistent read-modify-write window across
// multiple keys. The lock is released on every exit path, including a
// panic inside fn.
//
// Nested Hold calls from the same logical caller are rejected with
// ErrNestedHold: the original source has no such guard (spec.md §9 calls
// this out as a gap to close in re-architecture), so this is the one
// deliberate behavioral addition over the source this package ports from.
func (s *SharedState) Hold(ctx context.Context, fn func(ctx context.Context, h *HeldState) error) error {
	if ctx.Value(holdKey) != nil {
		return ErrNestedHold
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(context.WithValue(ctx, holdKey, true), &HeldState{s: s})
}
