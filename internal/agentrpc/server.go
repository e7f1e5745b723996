// Package agentrpc is the agent-side HTTP server any specialist agent
// embeds to become discoverable and invokable by the orchestrator. It
// owns the discovery, health and JSON-RPC dispatch endpoints; callers
// supply only the skill logic.
package agentrpc

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fedreview/mesh/internal/telemetry"
	"github.com/fedreview/mesh/internal/wire"
)

// envelopeSchema is the schema every inbound JSON-RPC request must
// satisfy before method dispatch runs.
var envelopeSchema = wire.StandardEnvelopeSchema()

// invokeParamsRaw decodes an "invoke" call's params just far enough to
// resolve the skill, so its input can be validated against that
// skill's own advertised input schema before being unmarshaled into
// wire.InvokeInput.
type invokeParamsRaw struct {
	Skill string          `json:"skill"`
	Input json.RawMessage `json:"input"`
}

// SkillHandler implements one skill's review logic. An error returned
// here becomes a JSON-RPC -32603 internal error; the handler itself
// never sees malformed input, since Server validates the envelope and
// skill ID before calling it.
type SkillHandler func(input wire.InvokeInput) (wire.AgentResponse, error)

// Server dispatches validated invoke requests to the registered skill
// handlers of one agent.
type Server struct {
	card     wire.AgentCard
	handlers map[string]SkillHandler
	logger   *slog.Logger
}

// New builds an agent server advertising card. Register skill handlers
// with Handle before calling Mux.
func New(card wire.AgentCard, logger *slog.Logger) *Server {
	if logger == nil {
		logger = telemetry.Base()
	}
	return &Server{
		card:     card,
		handlers: make(map[string]SkillHandler),
		logger:   logger.With("agent", card.Name),
	}
}

// Handle registers the handler for a skill ID. The skill must already
// be advertised in the card passed to New.
func (s *Server) Handle(skillID string, h SkillHandler) {
	s.handlers[skillID] = h
}

// skillByID returns the advertised Skill with the given ID.
func (s *Server) skillByID(skillID string) (wire.Skill, bool) {
	for _, sk := range s.card.Skills {
		if sk.ID == skillID {
			return sk, true
		}
	}
	return wire.Skill{}, false
}

// Mux builds the three endpoints an agent must serve: agent-card
// discovery, health, and the JSON-RPC dispatcher.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/agent-card.json", s.handleCard)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	return mux
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.card)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "agent": s.card.Name})
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, "", wire.CodeParseError, "Parse error")
		return
	}

	if err := wire.ValidateSchemaDoc(envelopeSchema, raw); err != nil {
		s.writeError(w, "", wire.CodeInvalidRequest, "Invalid Request: "+err.Error())
		return
	}

	var req wire.JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, "", wire.CodeInvalidRequest, "Invalid Request")
		return
	}
	if err := wire.ValidateJSONRPCRequest(req); err != nil {
		s.writeError(w, req.ID, wire.CodeInvalidRequest, "Invalid Request: "+err.Error())
		return
	}

	if req.Method != "invoke" {
		s.writeError(w, req.ID, wire.CodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
		return
	}

	if len(req.Params) == 0 {
		s.writeError(w, req.ID, wire.CodeInvalidParams, "Invalid params: missing params")
		return
	}
	var paramsRaw invokeParamsRaw
	if err := json.Unmarshal(req.Params, &paramsRaw); err != nil {
		s.writeError(w, req.ID, wire.CodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	handler, ok := s.handlers[paramsRaw.Skill]
	if !ok {
		s.writeError(w, req.ID, wire.CodeInvalidParams, fmt.Sprintf("Unknown skill: %s", paramsRaw.Skill))
		return
	}
	skill, _ := s.skillByID(paramsRaw.Skill)
	if err := wire.ValidateSchemaDoc(skill.InputSchema, paramsRaw.Input); err != nil {
		s.writeError(w, req.ID, wire.CodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	var input wire.InvokeInput
	if err := json.Unmarshal(paramsRaw.Input, &input); err != nil {
		s.writeError(w, req.ID, wire.CodeInvalidParams, "Invalid params: "+err.Error())
		return
	}
	if err := wire.ValidateInvokeParams(wire.InvokeParams{Skill: paramsRaw.Skill, Input: input}); err != nil {
		s.writeError(w, req.ID, wire.CodeInvalidParams, "Invalid params: "+err.Error())
		return
	}

	resp, err := handler(input)
	if err != nil {
		s.writeError(w, req.ID, wire.CodeInternalError, "Internal error: "+err.Error())
		return
	}

	s.writeResult(w, req.ID, resp)
}

func (s *Server) writeResult(w http.ResponseWriter, id string, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wire.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  mustMarshal(result),
	})
}

func (s *Server) writeError(w http.ResponseWriter, id string, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(wire.JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &wire.JSONRPCError{Code: code, Message: message},
	})
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		s := fmt.Sprintf(`{"findings":[],"marshal_error":%q}`, err.Error())
		return json.RawMessage(s)
	}
	return raw
}
