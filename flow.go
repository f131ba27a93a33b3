package agentflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Step names for the main flow graph.
const (
	StepClassify    = "classify"
	StepJournal     = "journal"
	StepOrchestrate = "orchestrate"
	StepAggregate   = "aggregate"
)

// Classification is the routing decision an external classifier makes for
// one user request.
type Classification struct {
	// Agents is the ordered set of agent identifiers to fan out to.
	Agents []string

	// Message is the classifier's note for the conversation log, also
	// shown to the human when clarification is requested.
	Message string

	// NeedsClarification requests a suspension before any fan-out.
	NeedsClarification bool
}

// Classifier selects the downstream agents for a request. Implementations
// are external collaborators (typically LLM-backed).
type Classifier interface {
	Classify(ctx context.Context, userInput string) (*Classification, error)
}

// RunRecord summarizes a run for external journaling before fan-out.
type RunRecord struct {
	RunID        string   `json:"run_id"`
	ThreadID     string   `json:"thread_id"`
	UserInput    string   `json:"user_input"`
	RouteTargets []string `json:"route_targets"`
	Summary      string   `json:"summary"`
}

// RunRecorder receives the run record. Persistence is the collaborator's
// concern; a recording failure never blocks orchestration.
type RunRecorder interface {
	Record(ctx context.Context, record *RunRecord) error
}

// FlowOptions wires the main flow's collaborators together.
type FlowOptions struct {
	Classifier  Classifier
	Recorder    RunRecorder // optional
	Dispatcher  *Dispatcher
	Aggregator  *Aggregator
	Checkpoints CheckpointStore
	Logger      *slog.Logger
	Metrics     *Metrics
}

// NewMainFlow builds the standard request flow — classify, journal,
// orchestrate, aggregate — over the static edges between those steps, and
// returns a Runner for it.
func NewMainFlow(opts FlowOptions) (*Runner, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	if opts.Aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	graph, err := NewGraph(GraphOptions{
		Name:  "main-flow",
		Entry: StepClassify,
		Nodes: []Node{
			classifyNode(opts.Classifier, logger),
			journalNode(opts.Recorder, logger),
			orchestrateNode(opts.Dispatcher),
			aggregateNode(opts.Aggregator),
		},
		Edges: []Edge{
			{From: StepClassify, To: StepJournal},
			{From: StepJournal, To: StepOrchestrate},
			{From: StepOrchestrate, To: StepAggregate},
		},
	})
	if err != nil {
		return nil, err
	}

	return NewRunner(RunnerOptions{
		Graph:       graph,
		Checkpoints: opts.Checkpoints,
		Logger:      logger,
		Metrics:     opts.Metrics,
	})
}

// classifyNode selects the route targets. A classifier failure routes to
// the unknown agent instead of failing the run, so the user still gets an
// answer describing the problem.
func classifyNode(classifier Classifier, logger *slog.Logger) Node {
	return NewNodeFunc(StepClassify, func(ctx context.Context, state *RunState) (Outcome, error) {
		classification, err := classifier.Classify(ctx, state.UserInput)
		if err != nil {
			logger.Warn("classification failed", "run_id", state.RunID, "error", err)
			return Continue(&Update{
				RouteTargets: []string{"unknown"},
				Messages:     []string{fmt.Sprintf("Classification failed: %v", err)},
			}), nil
		}
		targets := classification.Agents
		if len(targets) == 0 {
			targets = []string{"unknown"}
		}
		return Continue(&Update{
			RouteTargets:       targets,
			NeedsClarification: Bool(classification.NeedsClarification),
			Messages:           []string{classification.Message},
		}), nil
	})
}

// journalNode hands the run record to the recorder. Recording failures are
// logged and swallowed.
func journalNode(recorder RunRecorder, logger *slog.Logger) Node {
	return NewNodeFunc(StepJournal, func(ctx context.Context, state *RunState) (Outcome, error) {
		if recorder == nil {
			return Continue(nil), nil
		}
		record := &RunRecord{
			RunID:        state.RunID,
			ThreadID:     state.ThreadID,
			UserInput:    state.UserInput,
			RouteTargets: state.RouteTargets,
			Summary:      lastMessage(state),
		}
		if err := recorder.Record(ctx, record); err != nil {
			logger.Warn("failed to journal run", "run_id", state.RunID, "error", err)
		}
		return Continue(nil), nil
	})
}

// orchestrateNode suspends when clarification is pending, otherwise fans
// the request out to the route targets. On re-entry after resume the
// presence of human feedback satisfies the clarification condition.
func orchestrateNode(dispatcher *Dispatcher) Node {
	return NewNodeFunc(StepOrchestrate, func(ctx context.Context, state *RunState) (Outcome, error) {
		if state.NeedsClarification && len(state.HumanFeedback) == 0 {
			message := lastMessage(state)
			if message == "" {
				message = "Could you clarify your request?"
			}
			return RequestClarification(message), nil
		}

		input := state.UserInput
		if len(state.HumanFeedback) > 0 {
			input = input + "\nClarification: " + strings.Join(state.HumanFeedback, "\n")
		}
		results, err := dispatcher.Dispatch(ctx, state.RouteTargets, AgentRequest{
			UserInput: input,
			SessionID: state.ThreadID,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Continue(&Update{
			NeedsClarification: Bool(false),
			AgentResults:       results,
			Messages:           []string{fmt.Sprintf("Delegated request to %d agent(s)", len(results))},
		}), nil
	})
}

// aggregateNode merges the fan-out results and sets the final outcome.
func aggregateNode(aggregator *Aggregator) Node {
	return NewNodeFunc(StepAggregate, func(ctx context.Context, state *RunState) (Outcome, error) {
		outcome := aggregator.Aggregate(ctx, state.AgentResults, state.RouteTargets)
		return Continue(&Update{
			FinalResult: outcome,
			Messages:    []string{outcome.Message},
		}), nil
	})
}

func lastMessage(state *RunState) string {
	if len(state.Messages) == 0 {
		return ""
	}
	return state.Messages[len(state.Messages)-1]
}
