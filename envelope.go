package agentflow

import "fmt"

// Status classifies a single agent result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusError   Status = "error"
)

// OutcomeStatus classifies an aggregated final outcome. It extends Status
// with the empty case for rounds that produced no results at all.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeError   OutcomeStatus = "error"
	OutcomeEmpty   OutcomeStatus = "empty"
)

// SalientKey is the reserved key in ResultEnvelope.Data. When present, its
// string value names the data field that aggregation echoes ahead of the
// agent's message.
const SalientKey = "salient"

// ResultEnvelope is the normalized shape every worker agent or node-local
// computation produces.
type ResultEnvelope struct {
	Status      Status         `json:"status"`
	Message     string         `json:"message"`
	Data        map[string]any `json:"data,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// Validate enforces the envelope invariants: an error result must carry
// detail, a success result must not.
func (e *ResultEnvelope) Validate() error {
	if e.Status == StatusError && e.ErrorDetail == "" {
		return fmt.Errorf("error envelope requires error_detail")
	}
	if e.Status == StatusSuccess && e.ErrorDetail != "" {
		return fmt.Errorf("success envelope must not carry error_detail")
	}
	switch e.Status {
	case StatusSuccess, StatusPartial, StatusError:
		return nil
	default:
		return fmt.Errorf("unknown envelope status %q", e.Status)
	}
}

// ErrorEnvelope builds the envelope used when a fan-out target fails.
func ErrorEnvelope(message, detail string) *ResultEnvelope {
	return &ResultEnvelope{
		Status:      StatusError,
		Message:     message,
		ErrorDetail: detail,
	}
}

// FinalOutcome is the merged result of one fan-out round.
type FinalOutcome struct {
	// Message is the synthesized narrative.
	Message string `json:"message"`

	// Status is derived deterministically from the raw results.
	Status OutcomeStatus `json:"status"`

	// RawResults keeps the per-agent envelopes for audit and debugging.
	RawResults map[string]*ResultEnvelope `json:"raw_results,omitempty"`
}
