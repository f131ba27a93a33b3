package agentflow

import (
	"context"
)

// Node represents a single named unit of work in the graph. A node reads
// the run state and returns either a partial update or an interrupt. Side
// effects such as persistence are the node's own concern; with respect to
// its declared outputs a node must be deterministic.
type Node interface {

	// Name returns the step name the graph wires edges by.
	Name() string

	// Run executes the node against the current state. The state is
	// read-only from the node's perspective: changes are communicated
	// through the returned Outcome.
	Run(ctx context.Context, state *RunState) (Outcome, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc struct {
	name string
	fn   func(ctx context.Context, state *RunState) (Outcome, error)
}

// NewNodeFunc creates a new NodeFunc.
func NewNodeFunc(name string, fn func(ctx context.Context, state *RunState) (Outcome, error)) *NodeFunc {
	return &NodeFunc{name: name, fn: fn}
}

func (n *NodeFunc) Name() string {
	return n.name
}

func (n *NodeFunc) Run(ctx context.Context, state *RunState) (Outcome, error) {
	return n.fn(ctx, state)
}
