package toolsvc

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fedreview/mesh/internal/telemetry"
	"github.com/fedreview/mesh/internal/wire"
)

// toolCallRequestSchema is the schema every POST /call body must
// satisfy before it is decoded and dispatched.
var toolCallRequestSchema = wire.GenerateSchema(&wire.ToolCallRequest{})

// Server exposes the tool service's three HTTP endpoints and enforces
// the bearer-token authorization pipeline. Only intended to bind to
// loopback.
type Server struct {
	catalog     *Catalog
	permissions *PermissionStore
	authEnabled bool
	logger      *slog.Logger
}

// NewServer builds the tool service handler set.
func NewServer(catalog *Catalog, permissions *PermissionStore, authEnabled bool, logger *slog.Logger) *Server {
	if logger == nil {
		logger = telemetry.Base()
	}
	return &Server{catalog: catalog, permissions: permissions, authEnabled: authEnabled, logger: logger}
}

// Mux builds GET /tools, POST /call and GET /health.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/tools", s.handleTools)
	mux.HandleFunc("/call", s.handleCall)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.catalog.Definitions())
}

// handleCall implements the six-step authorization pipeline: auth
// steps 1, 2 and 4 are skipped entirely when authentication is
// disabled; schema and existence checks always run.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var token string
	if s.authEnabled {
		var ok bool
		token, ok = extractBearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.writeJSON(w, http.StatusUnauthorized, wire.ToolCallResponse{
				Ok:        false,
				Stderr:    "Missing or malformed Authorization header",
				ErrorCode: wire.CodeMissingAuth,
			})
			return
		}
		if !s.permissions.KnownToken(token) {
			s.writeJSON(w, http.StatusUnauthorized, wire.ToolCallResponse{
				Ok:        false,
				Stderr:    "Invalid token",
				ErrorCode: wire.CodeMissingAuth,
			})
			return
		}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "Malformed tool call request", http.StatusBadRequest)
		return
	}
	if err := wire.ValidateSchemaDoc(toolCallRequestSchema, raw); err != nil {
		http.Error(w, "Malformed tool call request: "+err.Error(), http.StatusBadRequest)
		return
	}
	var req wire.ToolCallRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		http.Error(w, "Malformed tool call request", http.StatusBadRequest)
		return
	}

	if s.authEnabled && !s.permissions.Allowed(token, req.Tool) {
		s.writeJSON(w, http.StatusForbidden, wire.ToolCallResponse{
			Ok:        false,
			Stderr:    "token lacks permission for this tool",
			ErrorCode: wire.CodeForbidden,
		})
		return
	}

	if !s.catalog.Exists(req.Tool) {
		s.writeJSON(w, http.StatusBadRequest, wire.ToolCallResponse{
			Ok:     false,
			Stderr: "Unknown tool: " + req.Tool,
		})
		return
	}

	result := s.catalog.Call(req.Tool, req.Args)
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
