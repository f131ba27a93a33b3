package agentflow

import (
	"go.jetify.com/typeid"
)

// NewRunID returns a new prefixed identifier used to correlate the logs and
// checkpoints of a single run.
func NewRunID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// RunState is the mutable state bag threaded through the graph. One run owns
// its RunState exclusively; nodes execute one at a time, so no locking is
// required here. The struct is fully JSON serializable for checkpointing.
type RunState struct {
	// UserInput is the initiating request text. Immutable after creation.
	UserInput string `json:"user_input"`

	// RunID correlates logs and persistence for one run. Set once.
	RunID string `json:"run_id"`

	// ThreadID identifies a resumable conversation and keys checkpoints.
	ThreadID string `json:"thread_id"`

	// RouteTargets is the ordered set of agent identifiers selected by an
	// early node. Order is preserved through fan-out and aggregation.
	RouteTargets []string `json:"route_targets,omitempty"`

	// NeedsClarification is set by a node to request suspension.
	NeedsClarification bool `json:"needs_clarification"`

	// Messages is the accumulating conversation log. Append-only.
	Messages []string `json:"messages,omitempty"`

	// AgentResults holds one envelope per completed fan-out target.
	// Append-only within a single fan-out round.
	AgentResults map[string]*ResultEnvelope `json:"agent_results,omitempty"`

	// HumanFeedback is the reserved field that resume merges external
	// input into. Nodes read it to satisfy a clarification condition.
	HumanFeedback []string `json:"human_feedback,omitempty"`

	// FinalResult is set by the terminal node. Once set, the run is
	// terminal and must not be resumed.
	FinalResult *FinalOutcome `json:"final_result,omitempty"`
}

// NewRunState creates the state for a fresh run.
func NewRunState(userInput, threadID string) *RunState {
	return &RunState{
		UserInput: userInput,
		RunID:     NewRunID(),
		ThreadID:  threadID,
	}
}

// Terminal reports whether the run has produced its final result.
func (s *RunState) Terminal() bool {
	return s.FinalResult != nil
}

// Copy returns a snapshot of the state. Slices and the result map are
// copied so the snapshot does not alias the live run.
func (s *RunState) Copy() *RunState {
	c := *s
	c.RouteTargets = append([]string(nil), s.RouteTargets...)
	c.Messages = append([]string(nil), s.Messages...)
	c.HumanFeedback = append([]string(nil), s.HumanFeedback...)
	if s.AgentResults != nil {
		c.AgentResults = make(map[string]*ResultEnvelope, len(s.AgentResults))
		for k, v := range s.AgentResults {
			c.AgentResults[k] = v
		}
	}
	return &c
}

// Update is a partial RunState update returned by a node. A set field fully
// replaces the corresponding state field. The two exceptions are Messages
// and AgentResults, which accumulate: returned entries are appended to the
// existing values rather than replacing them.
type Update struct {
	RouteTargets       []string
	NeedsClarification *bool
	Messages           []string
	AgentResults       map[string]*ResultEnvelope
	HumanFeedback      []string
	FinalResult        *FinalOutcome
}

// apply merges the update into the state. Shallow replace per field;
// Messages and AgentResults append.
func (u *Update) apply(s *RunState) {
	if u == nil {
		return
	}
	if u.RouteTargets != nil {
		s.RouteTargets = u.RouteTargets
	}
	if u.NeedsClarification != nil {
		s.NeedsClarification = *u.NeedsClarification
	}
	if len(u.Messages) > 0 {
		s.Messages = append(s.Messages, u.Messages...)
	}
	if len(u.AgentResults) > 0 {
		if s.AgentResults == nil {
			s.AgentResults = make(map[string]*ResultEnvelope, len(u.AgentResults))
		}
		for k, v := range u.AgentResults {
			s.AgentResults[k] = v
		}
	}
	if u.HumanFeedback != nil {
		s.HumanFeedback = u.HumanFeedback
	}
	if u.FinalResult != nil {
		s.FinalResult = u.FinalResult
	}
}

// Bool returns a pointer to b, for use in Update literals.
func Bool(b bool) *bool {
	return &b
}
