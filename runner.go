package agentflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// ErrRunCompleted is returned when resuming a thread whose run already
// produced its final result.
var ErrRunCompleted = errors.New("run already completed")

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	Graph       *Graph
	Checkpoints CheckpointStore
	Logger      *slog.Logger
	Metrics     *Metrics
}

// Runner executes a graph over a RunState, one node at a time in edge
// order. A run either terminates with a final state or suspends with an
// Interrupt; suspension writes a checkpoint so the thread can be resumed
// later, possibly by a different process.
type Runner struct {
	graph       *Graph
	checkpoints CheckpointStore
	logger      *slog.Logger
	metrics     *Metrics

	// Per-thread resume locks. Callers are expected to serialize resumes
	// per thread; this degrades a racing caller to sequential execution
	// instead of interleaved state.
	resumeLocks sync.Map // map[string]*sync.Mutex
}

// NewRunner creates a Runner for the given graph.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if opts.Checkpoints == nil {
		opts.Checkpoints = NewMemoryCheckpointStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		graph:       opts.Graph,
		checkpoints: opts.Checkpoints,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}, nil
}

// RunResult is the outcome of one Run or Resume call: a final state on
// termination, or an interrupt on suspension.
type RunResult struct {
	State     *RunState
	Interrupt *Interrupt
}

// Interrupted reports whether the run suspended for human input.
func (r *RunResult) Interrupted() bool {
	return r.Interrupt != nil
}

// Run executes the graph from its entry step against the given state.
func (r *Runner) Run(ctx context.Context, state *RunState) (*RunResult, error) {
	if state == nil {
		return nil, fmt.Errorf("state is required")
	}
	if state.ThreadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	if state.RunID == "" {
		state.RunID = NewRunID()
	}
	r.metrics.RecordRunStarted()
	r.logger.Info("run started",
		"run_id", state.RunID,
		"thread_id", state.ThreadID,
		"graph", r.graph.Name())
	return r.runFrom(ctx, state, r.graph.Entry())
}

// Resume re-enters a suspended thread at the node that suspended it,
// merging the human feedback into the state under the reserved field. The
// suspending node re-checks its condition and proceeds once satisfied.
// Concurrent resumes of the same thread are a caller error; they are
// serialized here rather than arbitrated.
func (r *Runner) Resume(ctx context.Context, threadID, feedback string) (*RunResult, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread id is required")
	}
	lock, _ := r.resumeLocks.LoadOrStore(threadID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	checkpoint, err := r.checkpoints.Load(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if checkpoint.Terminal() {
		return nil, ErrRunCompleted
	}
	if _, ok := r.graph.Node(checkpoint.NextNode); !ok {
		return nil, fmt.Errorf("checkpoint references unknown step %q", checkpoint.NextNode)
	}

	state := checkpoint.State.Copy()
	if feedback != "" {
		state.HumanFeedback = append(state.HumanFeedback, feedback)
	}

	r.logger.Info("run resumed",
		"run_id", state.RunID,
		"thread_id", threadID,
		"step", checkpoint.NextNode)
	return r.runFrom(ctx, state, checkpoint.NextNode)
}

// runFrom drives execution from the named step until a terminal step
// completes, a node suspends, or a node fails. Nodes execute strictly one
// at a time; updates are applied in whole-node-output increments.
func (r *Runner) runFrom(ctx context.Context, state *RunState, current string) (*RunResult, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		node, ok := r.graph.Node(current)
		if !ok {
			// Unreachable for a validated graph.
			return nil, fmt.Errorf("step %q not registered", current)
		}

		// Snapshot before the node runs: a suspension checkpoints the
		// state as of immediately before the interrupting node.
		snapshot := state.Copy()

		start := time.Now()
		outcome, err := node.Run(ctx, state)
		r.metrics.ObserveNode(current, time.Since(start), err)
		if err != nil {
			// No retry and no new checkpoint; the last checkpoint for
			// the thread remains valid for a future resume attempt.
			r.metrics.RecordRunCompleted("failed")
			r.logger.Error("node failed",
				"run_id", state.RunID,
				"step", current,
				"error", err)
			return nil, fmt.Errorf("node %q: %w", current, err)
		}

		if outcome.Suspended() {
			checkpoint := &Checkpoint{
				ThreadID:  state.ThreadID,
				State:     snapshot,
				NextNode:  current,
				CreatedAt: time.Now(),
			}
			if err := r.checkpoints.Save(ctx, checkpoint); err != nil {
				return nil, fmt.Errorf("failed to save suspension checkpoint: %w", err)
			}
			r.metrics.RecordInterrupt()
			r.logger.Info("run suspended",
				"run_id", state.RunID,
				"thread_id", state.ThreadID,
				"step", current)
			return &RunResult{State: snapshot, Interrupt: outcome.Interrupt()}, nil
		}

		outcome.Update().apply(state)

		next, ok := r.graph.Successor(current)
		if !ok {
			break
		}
		current = next
	}

	// Terminal checkpoint: final state, no next step. Keeps the audit
	// trail while making further resumes fail with ErrRunCompleted.
	checkpoint := &Checkpoint{
		ThreadID:  state.ThreadID,
		State:     state.Copy(),
		CreatedAt: time.Now(),
	}
	if err := r.checkpoints.Save(ctx, checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save terminal checkpoint: %w", err)
	}

	status := "completed"
	if state.FinalResult != nil {
		status = string(state.FinalResult.Status)
	}
	r.metrics.RecordRunCompleted(status)
	r.logger.Info("run completed",
		"run_id", state.RunID,
		"thread_id", state.ThreadID,
		"status", status)
	return &RunResult{State: state}, nil
}
