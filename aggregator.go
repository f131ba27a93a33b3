package agentflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
)

// EmptyAggregationMessage is the fixed message for a round that produced
// no results.
const EmptyAggregationMessage = "No responses to aggregate."

// Synthesizer turns the per-agent paragraphs into one narrative. It is an
// external collaborator (typically LLM-backed); aggregation never depends
// on it for status derivation and falls back to the raw paragraphs when it
// fails.
type Synthesizer interface {
	Synthesize(ctx context.Context, paragraphs []string) (string, error)
}

// SynthesizerFunc adapts a function to the Synthesizer interface.
type SynthesizerFunc func(ctx context.Context, paragraphs []string) (string, error)

func (f SynthesizerFunc) Synthesize(ctx context.Context, paragraphs []string) (string, error) {
	return f(ctx, paragraphs)
}

// AggregatorOptions configures an Aggregator.
type AggregatorOptions struct {
	// Synthesizer is optional; without one the outcome message is the
	// concatenation of the per-agent paragraphs.
	Synthesizer Synthesizer
	Logger      *slog.Logger
}

// Aggregator merges per-agent result envelopes into one FinalOutcome with
// a single deterministically derived status.
type Aggregator struct {
	synthesizer Synthesizer
	logger      *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts AggregatorOptions) *Aggregator {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Aggregator{
		synthesizer: opts.Synthesizer,
		logger:      opts.Logger,
	}
}

// Aggregate merges the envelopes into a FinalOutcome. Paragraphs follow the
// given identifier order (the fan-out route order); identifiers missing
// from the order list are appended alphabetically so no result is dropped.
func (a *Aggregator) Aggregate(ctx context.Context, results map[string]*ResultEnvelope, order []string) *FinalOutcome {
	if len(results) == 0 {
		return &FinalOutcome{
			Message: EmptyAggregationMessage,
			Status:  OutcomeEmpty,
		}
	}

	outcome := &FinalOutcome{
		Status:     DeriveStatus(results),
		RawResults: results,
	}

	paragraphs := make([]string, 0, len(results))
	for _, agent := range orderedAgents(results, order) {
		paragraphs = append(paragraphs, formatParagraph(agent, results[agent]))
	}

	outcome.Message = a.synthesize(ctx, paragraphs)
	return outcome
}

// synthesize delegates prose synthesis when a collaborator is configured,
// falling back to the concatenated paragraphs on failure.
func (a *Aggregator) synthesize(ctx context.Context, paragraphs []string) string {
	fallback := strings.Join(paragraphs, "\n\n")
	if a.synthesizer == nil {
		return fallback
	}
	message, err := a.synthesizer.Synthesize(ctx, paragraphs)
	if err != nil {
		a.logger.Warn("synthesis failed, falling back to raw paragraphs", "error", err)
		return fallback
	}
	return message
}

// DeriveStatus computes the aggregate status. The order of checks matters:
//
//  1. no results at all is empty
//  2. at least one success and no errors is success
//  3. any success or partial is partial
//  4. any error is error
//  5. anything left is empty
func DeriveStatus(results map[string]*ResultEnvelope) OutcomeStatus {
	if len(results) == 0 {
		return OutcomeEmpty
	}
	var successes, partials, errors int
	for _, envelope := range results {
		switch envelope.Status {
		case StatusSuccess:
			successes++
		case StatusPartial:
			partials++
		case StatusError:
			errors++
		}
	}
	switch {
	case successes > 0 && errors == 0:
		return OutcomeSuccess
	case successes > 0 || partials > 0:
		return OutcomePartial
	case errors > 0:
		return OutcomeError
	default:
		return OutcomeEmpty
	}
}

// orderedAgents returns all result keys, route order first, leftovers
// sorted for a deterministic message.
func orderedAgents(results map[string]*ResultEnvelope, order []string) []string {
	agents := make([]string, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, agent := range order {
		if _, ok := results[agent]; ok && !seen[agent] {
			agents = append(agents, agent)
			seen[agent] = true
		}
	}
	var rest []string
	for agent := range results {
		if !seen[agent] {
			rest = append(rest, agent)
		}
	}
	sort.Strings(rest)
	return append(agents, rest...)
}

// formatParagraph builds one agent's paragraph: salient data field first
// when the envelope marks one, then the message, then prefixed warnings,
// then error detail.
func formatParagraph(agent string, envelope *ResultEnvelope) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("**%s**:", agent))

	if key, ok := envelope.Data[SalientKey].(string); ok {
		if value, ok := envelope.Data[key]; ok {
			lines = append(lines, fmt.Sprintf("%s: %v", titleCase(key), value))
		}
	}
	if envelope.Message != "" {
		lines = append(lines, envelope.Message)
	}
	if len(envelope.Warnings) > 0 {
		lines = append(lines, "Warnings: "+strings.Join(envelope.Warnings, "; "))
	}
	if envelope.ErrorDetail != "" {
		lines = append(lines, "Error: "+envelope.ErrorDetail)
	}
	return strings.Join(lines, "\n")
}

// titleCase capitalizes a snake_case data key for display.
func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}
