package agentrpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedreview/mesh/internal/wire"
)

func testCard() wire.AgentCard {
	return wire.AgentCard{
		Name:            "test-agent",
		Version:         "0.1",
		ProtocolVersion: "1.0",
		Endpoint:        "http://127.0.0.1:9999/rpc",
		Skills: []wire.Skill{{
			ID:           "review.security",
			Version:      "1.0",
			InputSchema:  wire.StandardSkillInputSchema(),
			OutputSchema: wire.StandardSkillOutputSchema(),
		}},
		Auth:            wire.Auth{Type: wire.AuthNone},
	}
}

func newTestServer() *Server {
	s := New(testCard(), nil)
	s.Handle("review.security", func(input wire.InvokeInput) (wire.AgentResponse, error) {
		return wire.AgentResponse{ReviewResult: wire.ReviewResult{Findings: []wire.Finding{
			{Severity: wire.SeverityHigh, Title: "found", Evidence: "e", Recommendation: "r"},
		}}}, nil
	})
	return s
}

func doRPC(t *testing.T, mux http.Handler, body string) wire.JSONRPCResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp wire.JSONRPCResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleRPCSuccess(t *testing.T) {
	mux := newTestServer().Mux()
	resp := doRPC(t, mux, `{"jsonrpc":"2.0","id":"1","method":"invoke","params":{"skill":"review.security","input":{"diff":"+x","mcp_url":"http://127.0.0.1:9100"}}}`)

	assert.Nil(t, resp.Error)
	var result wire.ReviewResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "found", result.Findings[0].Title)
}

func TestHandleRPCParseError(t *testing.T) {
	mux := newTestServer().Mux()
	resp := doRPC(t, mux, `{ not json`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wire.CodeParseError, resp.Error.Code)
}

func TestHandleRPCMethodNotFound(t *testing.T) {
	mux := newTestServer().Mux()
	resp := doRPC(t, mux, `{"jsonrpc":"2.0","id":"1","method":"nonexistent"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wire.CodeMethodNotFound, resp.Error.Code)
}

func TestHandleRPCUnknownSkill(t *testing.T) {
	mux := newTestServer().Mux()
	resp := doRPC(t, mux, `{"jsonrpc":"2.0","id":"1","method":"invoke","params":{"skill":"review.unknown","input":{"diff":"+x","mcp_url":"http://x"}}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wire.CodeInvalidParams, resp.Error.Code)
}

func TestHandleRPCMissingParams(t *testing.T) {
	mux := newTestServer().Mux()
	resp := doRPC(t, mux, `{"jsonrpc":"2.0","id":"1","method":"invoke"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wire.CodeInvalidParams, resp.Error.Code)
}

func TestHandleRPCInvalidEnvelope(t *testing.T) {
	mux := newTestServer().Mux()
	resp := doRPC(t, mux, `{"id":"1","method":"invoke"}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wire.CodeInvalidRequest, resp.Error.Code)
}

func TestHandleRPCInputFailsSkillSchema(t *testing.T) {
	mux := newTestServer().Mux()
	resp := doRPC(t, mux, `{"jsonrpc":"2.0","id":"1","method":"invoke","params":{"skill":"review.security","input":{"mcp_url":"http://127.0.0.1:9100"}}}`)
	require.NotNil(t, resp.Error)
	assert.Equal(t, wire.CodeInvalidParams, resp.Error.Code)
}

func TestHandleCardEndpoint(t *testing.T) {
	mux := newTestServer().Mux()
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent-card.json", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var card wire.AgentCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &card))
	assert.Equal(t, "test-agent", card.Name)
}

func TestHandleHealthEndpoint(t *testing.T) {
	mux := newTestServer().Mux()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
