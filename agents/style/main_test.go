package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedreview/mesh/internal/agentrpc"
	"github.com/fedreview/mesh/internal/wire"
)

func TestFindingsFromLintEmptyOutputProducesNoFindings(t *testing.T) {
	assert.Empty(t, findingsFromLint(""))
	assert.Empty(t, findingsFromLint("   \n  "))
}

func TestFindingsFromLintNonEmptyOutputProducesOneFinding(t *testing.T) {
	findings := findingsFromLint("TODO marker: something\ntrailing whitespace: x")
	require.Len(t, findings, 1)
	assert.Equal(t, wire.SeverityMedium, findings[0].Severity)
	assert.Equal(t, "TODO marker: something", findings[0].Evidence)
}

func newStyleAgentServer() *agentrpc.Server {
	card := wire.AgentCard{
		Name:            "style-agent",
		Version:         "0.1",
		ProtocolVersion: "1.0",
		Endpoint:        "http://127.0.0.1:9211/rpc",
		Skills: []wire.Skill{{
			ID:           skillID,
			Version:      "1.0",
			InputSchema:  wire.StandardSkillInputSchema(),
			OutputSchema: wire.StandardSkillOutputSchema(),
		}},
		Auth:            wire.Auth{Type: wire.AuthNone},
	}
	server := agentrpc.New(card, nil)
	server.Handle(skillID, func(input wire.InvokeInput) (wire.AgentResponse, error) {
		raw, ok := input.AdditionalContext["lint_results"]
		if !ok {
			return wire.AgentResponse{NeedMoreInfo: wire.NeedMoreInfo{
				NeedMoreInfo: true,
				RequestType:  wire.RequestType("lint_results"),
				RequestParams: wire.RequestParams{
					Tool:        "lint",
					Args:        map[string]any{"diff": input.Diff},
					Description: "lint the diff's added lines",
				},
			}}, nil
		}
		output, _ := raw.(string)
		return wire.AgentResponse{ReviewResult: wire.ReviewResult{Findings: findingsFromLint(output)}}, nil
	})
	return server
}

func rpcCall(t *testing.T, mux http.Handler, body string) wire.JSONRPCResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp wire.JSONRPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestStyleAgentRequestsLintResultsWhenMissing(t *testing.T) {
	mux := newStyleAgentServer().Mux()
	resp := rpcCall(t, mux, `{"jsonrpc":"2.0","id":"1","method":"invoke","params":{"skill":"review.style","input":{"diff":"+x","mcp_url":"http://127.0.0.1:9100"}}}`)

	require.Nil(t, resp.Error)
	var out wire.AgentResponse
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.True(t, out.NeedMoreInfo.NeedMoreInfo)
	assert.Equal(t, wire.RequestType("lint_results"), out.NeedMoreInfo.RequestType)
	assert.Equal(t, "lint", out.NeedMoreInfo.RequestParams.Tool)
}

func TestStyleAgentReturnsFindingsWhenLintResultsProvided(t *testing.T) {
	mux := newStyleAgentServer().Mux()
	resp := rpcCall(t, mux, `{"jsonrpc":"2.0","id":"1","method":"invoke","params":{"skill":"review.style","input":{"diff":"+x","mcp_url":"http://127.0.0.1:9100","additional_context":{"lint_results":"issue found here"}}}}`)

	require.Nil(t, resp.Error)
	var out wire.AgentResponse
	require.NoError(t, json.Unmarshal(resp.Result, &out))
	assert.False(t, out.NeedMoreInfo.NeedMoreInfo)
	require.Len(t, out.ReviewResult.Findings, 1)
	assert.Equal(t, "issue found here", out.ReviewResult.Findings[0].Evidence)
}
