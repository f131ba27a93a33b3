package agentflow

import (
	"context"
	"errors"
)

// ErrCheckpointNotFound is returned when no checkpoint exists for a thread.
var ErrCheckpointNotFound = errors.New("checkpoint not found")

// CheckpointStore persists the latest checkpoint per thread so a suspended
// run can be resumed later, possibly by a different process. It is the only
// resource shared across runs; implementations must be safe for concurrent
// use, with at-most-one-writer-per-thread semantics left to callers.
type CheckpointStore interface {

	// Save stores the checkpoint, replacing any prior one for the thread.
	Save(ctx context.Context, checkpoint *Checkpoint) error

	// Load returns the latest checkpoint for a thread, or
	// ErrCheckpointNotFound if none exists.
	Load(ctx context.Context, threadID string) (*Checkpoint, error)

	// Delete removes the checkpoint for a thread, if any.
	Delete(ctx context.Context, threadID string) error
}
