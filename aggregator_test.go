package agentflow

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		name    string
		results map[string]*ResultEnvelope
		want    OutcomeStatus
	}{
		{
			name:    "no results is empty",
			results: map[string]*ResultEnvelope{},
			want:    OutcomeEmpty,
		},
		{
			name: "all success is success",
			results: map[string]*ResultEnvelope{
				"finance_agent": {Status: StatusSuccess},
				"hr_agent":      {Status: StatusSuccess},
			},
			want: OutcomeSuccess,
		},
		{
			name: "success with partial and no error is success",
			results: map[string]*ResultEnvelope{
				"finance_agent": {Status: StatusSuccess},
				"hr_agent":      {Status: StatusPartial},
			},
			want: OutcomeSuccess,
		},
		{
			name: "success alongside error is partial",
			results: map[string]*ResultEnvelope{
				"finance_agent": {Status: StatusSuccess},
				"hr_agent":      {Status: StatusError, ErrorDetail: "timeout"},
			},
			want: OutcomePartial,
		},
		{
			name: "partial alongside error is partial",
			results: map[string]*ResultEnvelope{
				"finance_agent": {Status: StatusPartial},
				"hr_agent":      {Status: StatusError, ErrorDetail: "timeout"},
			},
			want: OutcomePartial,
		},
		{
			name: "all errors is error",
			results: map[string]*ResultEnvelope{
				"finance_agent": {Status: StatusError, ErrorDetail: "down"},
				"hr_agent":      {Status: StatusError, ErrorDetail: "timeout"},
			},
			want: OutcomeError,
		},
		{
			name: "unrecognized statuses fall through to empty",
			results: map[string]*ResultEnvelope{
				"finance_agent": {Status: "mystery"},
			},
			want: OutcomeEmpty,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveStatus(tc.results))
		})
	}
}

func TestAggregatorAggregate(t *testing.T) {
	t.Run("empty results produce the fixed empty outcome", func(t *testing.T) {
		aggregator := NewAggregator(AggregatorOptions{})
		outcome := aggregator.Aggregate(context.Background(), nil, nil)
		require.Equal(t, OutcomeEmpty, outcome.Status)
		require.Equal(t, EmptyAggregationMessage, outcome.Message)
	})

	t.Run("raw results are kept for audit", func(t *testing.T) {
		results := map[string]*ResultEnvelope{
			"finance_agent": {Status: StatusSuccess, Message: "Job created"},
		}
		aggregator := NewAggregator(AggregatorOptions{})
		outcome := aggregator.Aggregate(context.Background(), results, []string{"finance_agent"})
		require.Equal(t, results, outcome.RawResults)
	})

	t.Run("paragraphs follow route order with salient field, warnings and errors", func(t *testing.T) {
		results := map[string]*ResultEnvelope{
			"hr_agent": {
				Status:      StatusError,
				Message:     "Failed to reach hr_agent",
				ErrorDetail: "timeout",
			},
			"finance_agent": {
				Status:   StatusSuccess,
				Message:  "Job created",
				Data:     map[string]any{"salient": "job_type", "job_type": "design"},
				Warnings: []string{"quotation pending", "company unverified"},
			},
		}
		aggregator := NewAggregator(AggregatorOptions{})
		outcome := aggregator.Aggregate(context.Background(), results, []string{"finance_agent", "hr_agent"})

		require.Equal(t, OutcomePartial, outcome.Status)

		financeIdx := strings.Index(outcome.Message, "**finance_agent**")
		hrIdx := strings.Index(outcome.Message, "**hr_agent**")
		require.GreaterOrEqual(t, financeIdx, 0)
		require.GreaterOrEqual(t, hrIdx, 0)
		require.Less(t, financeIdx, hrIdx, "route order fixes paragraph order")

		// The salient field is echoed before the message.
		require.Less(t,
			strings.Index(outcome.Message, "Job Type: design"),
			strings.Index(outcome.Message, "Job created"))
		require.Contains(t, outcome.Message, "Warnings: quotation pending; company unverified")
		require.Contains(t, outcome.Message, "Error: timeout")
	})

	t.Run("results missing from the route order are still reported", func(t *testing.T) {
		results := map[string]*ResultEnvelope{
			"surprise_agent": {Status: StatusSuccess, Message: "unexpected but welcome"},
		}
		aggregator := NewAggregator(AggregatorOptions{})
		outcome := aggregator.Aggregate(context.Background(), results, []string{"finance_agent"})
		require.Contains(t, outcome.Message, "surprise_agent")
	})

	t.Run("synthesizer output becomes the message", func(t *testing.T) {
		aggregator := NewAggregator(AggregatorOptions{
			Synthesizer: SynthesizerFunc(func(ctx context.Context, paragraphs []string) (string, error) {
				return "one tidy narrative", nil
			}),
		})
		outcome := aggregator.Aggregate(context.Background(), map[string]*ResultEnvelope{
			"finance_agent": {Status: StatusSuccess, Message: "Job created"},
		}, []string{"finance_agent"})
		require.Equal(t, "one tidy narrative", outcome.Message)
		require.Equal(t, OutcomeSuccess, outcome.Status)
	})

	t.Run("synthesis failure falls back to concatenated paragraphs", func(t *testing.T) {
		aggregator := NewAggregator(AggregatorOptions{
			Synthesizer: SynthesizerFunc(func(ctx context.Context, paragraphs []string) (string, error) {
				return "", errors.New("model unavailable")
			}),
		})
		outcome := aggregator.Aggregate(context.Background(), map[string]*ResultEnvelope{
			"finance_agent": {Status: StatusSuccess, Message: "Job created"},
		}, []string{"finance_agent"})
		require.Contains(t, outcome.Message, "Job created")
		require.Equal(t, OutcomeSuccess, outcome.Status, "status never depends on synthesis")
	})

	t.Run("status is idempotent across repeated aggregation", func(t *testing.T) {
		results := map[string]*ResultEnvelope{
			"finance_agent": {Status: StatusSuccess, Message: "Job created"},
			"hr_agent":      {Status: StatusError, Message: "Failed", ErrorDetail: "timeout"},
		}
		aggregator := NewAggregator(AggregatorOptions{})
		first := aggregator.Aggregate(context.Background(), results, nil)
		second := aggregator.Aggregate(context.Background(), results, nil)
		require.Equal(t, first.Status, second.Status)
		require.Equal(t, OutcomePartial, first.Status)
	})
}
