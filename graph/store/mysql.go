package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentflow-dev/workflow/graph"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

// MySQLStore is a MySQL/MariaDB-backed graph.CheckpointStorage
// implementation, for production workflows that need checkpoints to
// survive a process restart and be visible to more than one worker.
type MySQLStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	retry  retryPolicy
}

// NewMySQLStore opens a connection pool against dsn and migrates the
// checkpoint table. dsn follows the go-sql-driver/mysql DSN format:
//
//	user:password@tcp(host:3306)/dbname?parseTime=true
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &MySQLStore{
		db:    db,
		retry: defaultRetryPolicy(isMySQLRetryable),
	}
	if err := s.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// isMySQLRetryable reports whether err is a transient MySQL failure worth
// retrying: deadlocks and lock wait timeouts, identified by their server
// error numbers (1205, 1213).
func isMySQLRetryable(err error) bool {
	var mErr *mysql.MySQLError
	if ok := asMySQLError(err, &mErr); ok {
		return mErr.Number == 1205 || mErr.Number == 1213
	}
	return strings.Contains(err.Error(), "deadlock")
}

func asMySQLError(err error, target **mysql.MySQLError) bool {
	me, ok := err.(*mysql.MySQLError)
	if !ok {
		return false
	}
	*target = me
	return true
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS workflow_checkpoints (
			id VARCHAR(64) NOT NULL PRIMARY KEY,
			workflow_id VARCHAR(255) NOT NULL,
			iteration_count INT NOT NULL,
			data LONGTEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_checkpoints_workflow (workflow_id, iteration_count)
		) ENGINE=InnoDB
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveCheckpoint persists cp under a freshly generated id.
func (s *MySQLStore) SaveCheckpoint(ctx context.Context, cp graph.WorkflowCheckpoint) (string, error) {
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
func (s *MySQLStore) LoadCheckpoint(ctx context.Context, id string) (*graph.WorkflowCheckpoint, error) {
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
func (s *MySQLStore) ListCheckpoints(ctx context.Context, workflowID string) ([]string, error) {
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

// Close closes the underlying connection pool. Safe to call more than once.
func (s *MySQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
