package fanout

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedreview/mesh/internal/breaker"
	"github.com/fedreview/mesh/internal/config"
	"github.com/fedreview/mesh/internal/discovery"
	"github.com/fedreview/mesh/internal/invoker"
	"github.com/fedreview/mesh/internal/wire"
)

func skillServer(t *testing.T, findingTitle string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wire.JSONRPCRequest
		json.NewDecoder(r.Body).Decode(&req)
		result, _ := json.Marshal(wire.ReviewResult{Findings: []wire.Finding{
			{Severity: wire.SeverityMedium, Title: findingTitle, Evidence: "e", Recommendation: "r"},
		}})
		json.NewEncoder(w).Encode(wire.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunInvokesEveryAgentSkillPair(t *testing.T) {
	srvA := skillServer(t, "from-a")
	srvB := skillServer(t, "from-b")

	agents := []discovery.DiscoveredAgent{
		{Card: wire.AgentCard{Name: "a", Endpoint: srvA.URL + "/rpc", Skills: []wire.Skill{{ID: "review.security"}, {ID: "review.style"}}}},
		{Card: wire.AgentCard{Name: "b", Endpoint: srvB.URL + "/rpc", Skills: []wire.Skill{{ID: "review.tests"}}}},
	}

	cfg := &config.Config{AgentTimeout: time.Second, ToolTimeout: time.Second, MaxRetries: 1, MaxNegotiationRounds: 2}
	inv := invoker.New(cfg, breaker.NewTable(3, time.Hour), nil)

	outcome := Run(context.Background(), inv, agents, "+x", "http://127.0.0.1:9100", "")

	require.Len(t, outcome.Results, 3)
	assert.NotEmpty(t, outcome.CorrelationID)
	snapshot := outcome.Metrics.Snapshot()
	assert.Contains(t, snapshot.AgentLatencies, "a")
	assert.Contains(t, snapshot.AgentLatencies, "b")
}

func TestRunReusesProvidedCorrelationID(t *testing.T) {
	srv := skillServer(t, "x")
	agents := []discovery.DiscoveredAgent{
		{Card: wire.AgentCard{Name: "a", Endpoint: srv.URL + "/rpc", Skills: []wire.Skill{{ID: "review.security"}}}},
	}
	cfg := &config.Config{AgentTimeout: time.Second, ToolTimeout: time.Second, MaxRetries: 1, MaxNegotiationRounds: 2}
	inv := invoker.New(cfg, breaker.NewTable(3, time.Hour), nil)

	outcome := Run(context.Background(), inv, agents, "+x", "http://127.0.0.1:9100", "fixed-id")
	assert.Equal(t, "fixed-id", outcome.CorrelationID)
	assert.Equal(t, "fixed-id", outcome.Metrics.CorrelationID)
}
