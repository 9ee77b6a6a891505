package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/agentflow-dev/workflow/graph"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file graph.CheckpointStorage backend.
//
// Designed for local development, prototyping, and single-process
// workflows that need persistence across restarts without standing up a
// database server. Uses WAL mode for concurrent readers.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	retry  retryPolicy
}

// NewSQLiteStore opens (and migrates) a SQLite-backed checkpoint store.
// path may be a file path or ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{
		db:    db,
		retry: defaultRetryPolicy(isSQLiteBusy),
	}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func isSQLiteBusy(err error) bool {
	return err != nil && strings.Contains(err.Error(), "busy")
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			id TEXT NOT NULL PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			iteration_count INTEGER NOT NULL,
			data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_checkpoints_workflow ON workflow_checkpoints(workflow_id, iteration_count)")
	return err
}

// SaveCheckpoint persists cp under a freshly generated id.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp graph.WorkflowCheckpoint) (string, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return "", fmt.Errorf("store is closed")
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	id := uuid.NewString()

	err = withRetry(ctx, s.retry, func() error {
		_, err := s.db.ExecContext(ctx,
			"INSERT INTO workflow_checkpoints (id, workflow_id, iteration_count, data) VALUES (?, ?, ?, ?)",
			id, cp.WorkflowID, cp.IterationCount, string(data))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return id, nil
}

// LoadCheckpoint retrieves a previously saved checkpoint by id.
func (s *SQLiteStore) LoadCheckpoint(ctx context.Context, id string) (*graph.WorkflowCheckpoint, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("store is closed")
	}

	var data string
	err := withRetry(ctx, s.retry, func() error {
		return s.db.QueryRowContext(ctx, "SELECT data FROM workflow_checkpoints WHERE id = ?", id).Scan(&data)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var cp graph.WorkflowCheckpoint
	if err := json.Unmarshal([]byte(data), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// ListCheckpoints returns every checkpoint id saved for workflowID, ordered
// by iteration count.
func (s *SQLiteStore) ListCheckpoints(ctx context.Context, workflowID string) ([]string, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM workflow_checkpoints WHERE workflow_id = ? ORDER BY iteration_count ASC", workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the underlying database connection. Safe to call more than
// once.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
