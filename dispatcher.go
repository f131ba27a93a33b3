package agentflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// DefaultDispatchTimeout is the per-target deadline for one fan-out call.
// Worker agents run their own multi-step flows, so the bound is generous.
const DefaultDispatchTimeout = 90 * time.Second

// AgentRequest is the JSON body posted to every worker agent.
type AgentRequest struct {
	UserInput string `json:"user_input"`
	AgentType string `json:"agent_type"`
	SessionID string `json:"session_id"`
}

// agentResponse is the wire envelope worker agents reply with.
type agentResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Endpoints maps agent identifiers to their HTTP endpoints.
	Endpoints map[string]string

	// Timeout is the per-target call deadline. Defaults to
	// DefaultDispatchTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client

	Logger  *slog.Logger
	Metrics *Metrics
}

// Dispatcher fans a single request out to multiple worker agents
// concurrently: one goroutine per target, joined before returning. Failures
// are isolated per target; a timeout, transport failure, non-2xx response
// or unknown target becomes an error envelope for that target only and
// never aborts or delays its siblings.
type Dispatcher struct {
	endpoints map[string]string
	timeout   time.Duration
	client    *http.Client
	logger    *slog.Logger
	metrics   *Metrics
}

// NewDispatcher creates a Dispatcher for the given agent endpoint table.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDispatchTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{
		endpoints: opts.Endpoints,
		timeout:   opts.Timeout,
		client:    opts.HTTPClient,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
}

// Dispatch calls every target concurrently and returns one envelope per
// target, keyed by identifier. Completion order is never exposed. If ctx is
// cancelled the round is abandoned: all outstanding calls are cancelled and
// no partial results are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []string, req AgentRequest) (map[string]*ResultEnvelope, error) {
	results := make(map[string]*ResultEnvelope, len(targets))
	if len(targets) == 0 {
		return results, nil
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, target := range targets {
		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			envelope := d.callAgent(ctx, target, req)
			mu.Lock()
			results[target] = envelope
			mu.Unlock()
		}(target)
	}
	wg.Wait()

	// A cancelled round commits nothing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// callAgent performs one outbound call and normalizes every failure mode
// into an error envelope.
func (d *Dispatcher) callAgent(ctx context.Context, target string, req AgentRequest) *ResultEnvelope {
	endpoint, ok := d.endpoints[target]
	if !ok {
		d.metrics.RecordDispatch(target, "unknown_target")
		return ErrorEnvelope(
			fmt.Sprintf("Failed to reach %s", target),
			fmt.Sprintf("no endpoint configured for agent %q", target))
	}

	req.AgentType = target
	body, err := json.Marshal(req)
	if err != nil {
		d.metrics.RecordDispatch(target, "error")
		return ErrorEnvelope(
			fmt.Sprintf("Failed to reach %s", target),
			fmt.Sprintf("failed to encode request: %v", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		d.metrics.RecordDispatch(target, "error")
		return ErrorEnvelope(
			fmt.Sprintf("Failed to reach %s", target),
			fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := d.client.Do(httpReq)
	if err != nil {
		// Timeouts are treated identically to transport failures.
		detail := err.Error()
		if callCtx.Err() == context.DeadlineExceeded {
			detail = "timeout"
		}
		d.metrics.RecordDispatch(target, "error")
		d.logger.Warn("agent call failed", "agent", target, "error", err)
		return ErrorEnvelope(fmt.Sprintf("Failed to reach %s", target), detail)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		d.metrics.RecordDispatch(target, "error")
		return ErrorEnvelope(
			fmt.Sprintf("Failed to reach %s", target),
			fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.metrics.RecordDispatch(target, "error")
		d.logger.Warn("agent returned non-2xx",
			"agent", target,
			"status_code", resp.StatusCode)
		return ErrorEnvelope(
			fmt.Sprintf("Failed to reach %s", target),
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	d.metrics.RecordDispatch(target, "success")
	d.logger.Info("agent call completed",
		"agent", target,
		"duration", time.Since(start))
	return normalizeAgentResponse(target, respBody)
}

// normalizeAgentResponse converts a worker agent's wire reply into a
// ResultEnvelope. Agents that already speak the envelope shape pass
// through; arbitrary JSON payloads are wrapped.
func normalizeAgentResponse(target string, body []byte) *ResultEnvelope {
	var wire agentResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return ErrorEnvelope(
			fmt.Sprintf("Invalid response from %s", target),
			fmt.Sprintf("failed to decode response: %v", err))
	}
	if wire.Status == "fail" {
		return ErrorEnvelope(
			fmt.Sprintf("Agent %s reported failure", target),
			string(wire.Result))
	}

	var envelope ResultEnvelope
	if len(wire.Result) > 0 {
		if err := json.Unmarshal(wire.Result, &envelope); err == nil && envelope.Validate() == nil {
			return &envelope
		}
		// Not envelope-shaped: keep the payload under data.
		var payload map[string]any
		if err := json.Unmarshal(wire.Result, &payload); err == nil {
			return &ResultEnvelope{
				Status:  StatusSuccess,
				Message: fmt.Sprintf("Response received from %s", target),
				Data:    payload,
			}
		}
	}
	return &ResultEnvelope{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Response received from %s", target),
	}
}
