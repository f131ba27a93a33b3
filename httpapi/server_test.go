package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/backline-ai/agentflow"
)

// newTestServer builds a server over a two-step graph whose first step
// suspends for clarification until feedback arrives.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	graph, err := agentflow.NewGraph(agentflow.GraphOptions{
		Name:  "boundary-test",
		Entry: "gate",
		Nodes: []agentflow.Node{
			agentflow.NewNodeFunc("gate", func(ctx context.Context, state *agentflow.RunState) (agentflow.Outcome, error) {
				if strings.Contains(state.UserInput, "ambiguous") && len(state.HumanFeedback) == 0 {
					return agentflow.RequestClarification("Which department?"), nil
				}
				return agentflow.Continue(nil), nil
			}),
			agentflow.NewNodeFunc("finish", func(ctx context.Context, state *agentflow.RunState) (agentflow.Outcome, error) {
				return agentflow.Continue(&agentflow.Update{
					FinalResult: &agentflow.FinalOutcome{
						Status:  agentflow.OutcomeSuccess,
						Message: "All done",
					},
				}), nil
			}),
		},
		Edges: []agentflow.Edge{{From: "gate", To: "finish"}},
	})
	require.NoError(t, err)

	runner, err := agentflow.NewRunner(agentflow.RunnerOptions{
		Graph:       graph,
		Checkpoints: agentflow.NewMemoryCheckpointStore(),
	})
	require.NoError(t, err)

	server, err := NewServer(ServerOptions{Runner: runner})
	require.NoError(t, err)
	return server
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	var payload map[string]any
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	}
	return recorder, payload
}

func TestServerHealth(t *testing.T) {
	server := newTestServer(t)
	recorder, payload := doJSON(t, server.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "healthy", payload["status"])
}

func TestServerQuery(t *testing.T) {
	t.Run("completed run returns the final result", func(t *testing.T) {
		server := newTestServer(t)
		recorder, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/query",
			`{"message":"create a job","session_id":"s1"}`)

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, "success", payload["status"])
		require.Equal(t, "s1", payload["session_id"])

		result := payload["result"].(map[string]any)
		require.Equal(t, "All done", result["message"])
		require.Equal(t, "success", result["status"])
	})

	t.Run("missing session id is generated", func(t *testing.T) {
		server := newTestServer(t)
		recorder, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/query",
			`{"message":"create a job"}`)

		require.Equal(t, http.StatusOK, recorder.Code)
		require.NotEmpty(t, payload["session_id"])
	})

	t.Run("missing message is a bad request", func(t *testing.T) {
		server := newTestServer(t)
		recorder, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/query",
			`{"session_id":"s1"}`)

		require.Equal(t, http.StatusBadRequest, recorder.Code)
		require.NotEmpty(t, payload["error"])
	})

	t.Run("suspended run returns the interrupt envelope", func(t *testing.T) {
		server := newTestServer(t)
		recorder, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/query",
			`{"message":"something ambiguous","session_id":"s2"}`)

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, "interrupt", payload["status"])
		require.Equal(t, "s2", payload["session_id"])
		require.Equal(t, true, payload["requires_feedback"])

		result := payload["result"].(map[string]any)
		require.Equal(t, "Which department?", result["message"])
	})
}

func TestServerResume(t *testing.T) {
	t.Run("resume completes a suspended run", func(t *testing.T) {
		server := newTestServer(t)
		_, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/query",
			`{"message":"something ambiguous","session_id":"s3"}`)
		require.Equal(t, "interrupt", payload["status"])

		recorder, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/resume",
			`{"message":"finance","session_id":"s3"}`)

		require.Equal(t, http.StatusOK, recorder.Code)
		require.Equal(t, "success", payload["status"])
		result := payload["result"].(map[string]any)
		require.Equal(t, "All done", result["message"])
	})

	t.Run("unknown session is not found", func(t *testing.T) {
		server := newTestServer(t)
		recorder, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/resume",
			`{"message":"finance","session_id":"never-seen"}`)

		require.Equal(t, http.StatusNotFound, recorder.Code)
		require.NotEmpty(t, payload["error"])
	})

	t.Run("completed session conflicts", func(t *testing.T) {
		server := newTestServer(t)
		doJSON(t, server.Handler(), http.MethodPost, "/api/agents/query",
			`{"message":"something ambiguous","session_id":"s4"}`)
		doJSON(t, server.Handler(), http.MethodPost, "/api/agents/resume",
			`{"message":"finance","session_id":"s4"}`)

		recorder, payload := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/resume",
			`{"message":"again","session_id":"s4"}`)

		require.Equal(t, http.StatusConflict, recorder.Code)
		require.Equal(t, "run already completed", payload["error"])
	})

	t.Run("missing fields are a bad request", func(t *testing.T) {
		server := newTestServer(t)
		recorder, _ := doJSON(t, server.Handler(), http.MethodPost, "/api/agents/resume",
			`{"message":"finance"}`)
		require.Equal(t, http.StatusBadRequest, recorder.Code)
	})
}
