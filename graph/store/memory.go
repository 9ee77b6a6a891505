package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/agentflow-dev/workflow/graph"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory graph.CheckpointStorage implementation.
//
// Designed for testing, single-process workflows, and short-lived runs
// where durability isn't required. Data is lost when the process exits.
type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string]graph.WorkflowCheckpoint
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{checkpoints: make(map[string]graph.WorkflowCheckpoint)}
}

// SaveCheckpoint stores cp under a freshly generated id.
func (m *MemoryStore) SaveCheckpoint(_ context.Context, cp graph.WorkflowCheckpoint) (string, error) {
	id := fmt.Sprintf("%s:%s", cp.WorkflowID, uuid.NewString())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[id] = cp
	return id, nil
}

// LoadCheckpoint retrieves a previously saved checkpoint by id.
func (m *MemoryStore) LoadCheckpoint(_ context.Context, id string) (*graph.WorkflowCheckpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &cp, nil
}

// ListCheckpoints returns every checkpoint id saved for workflowID, ordered
// by iteration count.
func (m *MemoryStore) ListCheckpoints(_ context.Context, workflowID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type entry struct {
		id   string
		iter int
	}
	var matches []entry
	for id, cp := range m.checkpoints {
		if cp.WorkflowID == workflowID {
			matches = append(matches, entry{id: id, iter: cp.IterationCount})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].iter < matches[j].iter })

	ids := make([]string, len(matches))
	for i, e := range matches {
		ids[i] = e.id
	}
	return ids, nil
}
