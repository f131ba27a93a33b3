package agentflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

const postgresCheckpointSchema = `
CREATE TABLE IF NOT EXISTS agentflow_checkpoints (
	thread_id  TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	next_node  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
)`

// PostgresCheckpointStore persists checkpoints in a Postgres table, one row
// per thread, upserted on save.
type PostgresCheckpointStore struct {
	db *sql.DB
}

// NewPostgresCheckpointStore opens a connection with the given DSN and
// ensures the checkpoint table exists.
func NewPostgresCheckpointStore(ctx context.Context, dsn string) (*PostgresCheckpointStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresCheckpointSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint table: %w", err)
	}
	return &PostgresCheckpointStore{db: db}, nil
}

func (s *PostgresCheckpointStore) Save(ctx context.Context, checkpoint *Checkpoint) error {
	state, err := json.Marshal(checkpoint.State)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agentflow_checkpoints (thread_id, state, next_node, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (thread_id) DO UPDATE SET
			state = EXCLUDED.state,
			next_node = EXCLUDED.next_node,
			created_at = EXCLUDED.created_at`,
		checkpoint.ThreadID, state, checkpoint.NextNode, checkpoint.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

func (s *PostgresCheckpointStore) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	checkpoint := &Checkpoint{ThreadID: threadID}
	var state []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT state, next_node, created_at
		FROM agentflow_checkpoints WHERE thread_id = $1`, threadID).
		Scan(&state, &checkpoint.NextNode, &checkpoint.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCheckpointNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if err := json.Unmarshal(state, &checkpoint.State); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint state: %w", err)
	}
	return checkpoint, nil
}

func (s *PostgresCheckpointStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM agentflow_checkpoints WHERE thread_id = $1`, threadID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *PostgresCheckpointStore) Close() error {
	return s.db.Close()
}
