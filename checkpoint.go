package agentflow

import "time"

// Checkpoint is a persisted snapshot of a run, keyed by thread. NextNode
// names the step to re-enter on resume; it is empty for terminal
// checkpoints. At most one checkpoint exists per thread at a time: writing
// a new one replaces the prior value, last writer wins. No history is
// retained by this core.
type Checkpoint struct {
	ThreadID  string    `json:"thread_id"`
	State     *RunState `json:"state"`
	NextNode  string    `json:"next_node,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Terminal reports whether this checkpoint belongs to a completed run.
func (c *Checkpoint) Terminal() bool {
	return c.NextNode == "" || (c.State != nil && c.State.Terminal())
}
