package toolsvc

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

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := LoadPermissionStore("file::memory:?cache=shared")
	require.NoError(t, err)
	catalog := NewCatalog(&DependencyAuditClient{})
	return NewServer(catalog, store, true, nil)
}

func callTool(t *testing.T, mux http.Handler, token, tool string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(wire.ToolCallRequest{Tool: tool})
	req := httptest.NewRequest(http.MethodPost, "/call", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleCallMissingAuth(t *testing.T) {
	mux := newTestServer(t).Mux()
	rec := callTool(t, mux, "", "lint")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp wire.ToolCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ok)
	assert.Equal(t, wire.CodeMissingAuth, resp.ErrorCode)
}

func TestHandleCallInvalidToken(t *testing.T) {
	mux := newTestServer(t).Mux()
	rec := callTool(t, mux, "not-a-real-token", "lint")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleCallForbiddenTool(t *testing.T) {
	mux := newTestServer(t).Mux()
	rec := callTool(t, mux, "limited-token", "run_tests")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var resp wire.ToolCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Stderr, "permission")
	assert.Equal(t, wire.CodeForbidden, resp.ErrorCode)
}

func TestHandleCallPermittedToolSucceeds(t *testing.T) {
	mux := newTestServer(t).Mux()
	rec := callTool(t, mux, "limited-token", "lint")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp wire.ToolCallResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Ok)
}

func TestHandleCallUnknownTool(t *testing.T) {
	mux := newTestServer(t).Mux()
	rec := callTool(t, mux, "full-token", "does_not_exist")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleCallAuthDisabledSkipsTokenChecks(t *testing.T) {
	store, err := LoadPermissionStore("file::memory:?cache=shared")
	require.NoError(t, err)
	catalog := NewCatalog(&DependencyAuditClient{})
	server := NewServer(catalog, store, false, nil)

	rec := callTool(t, server.Mux(), "", "lint")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleToolsListsCatalog(t *testing.T) {
	mux := newTestServer(t).Mux()
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var catalog wire.ToolCatalog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &catalog))
	assert.Len(t, catalog.Tools, 3)
}
