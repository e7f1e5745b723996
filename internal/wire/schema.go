package wire

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// reflector is shared across every schema generation call so all
// reflected documents come from one consistently configured
// *jsonschema.Reflector.
var reflector = &jsonschema.Reflector{ExpandedStruct: true}

// GenerateSchema reflects a Go value into a JSON-schema document. It is
// used to build the Skill.InputSchema/OutputSchema and ToolDefinition
// schema fields advertised over the wire, so a consumer never has to
// hand-author schema JSON that could drift from the Go struct it
// describes.
func GenerateSchema(v any) json.RawMessage {
	schema := reflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		// Reflection over a concrete Go value cannot fail to marshal;
		// a panic here means a caller passed something pathological.
		panic(fmt.Sprintf("wire: generate schema: %v", err))
	}
	return data
}

// reviewInputShape is reflected to build the standard skill input
// schema: every skill's input requires at least diff and mcp_url.
type reviewInputShape struct {
	Diff              string         `json:"diff"`
	MCPURL            string         `json:"mcp_url"`
	AdditionalContext map[string]any `json:"additional_context,omitempty"`
}

// reviewOutputShape is reflected to build the standard skill output
// schema: every skill's output requires findings.
type reviewOutputShape struct {
	Findings []Finding `json:"findings"`
}

// StandardSkillInputSchema returns the JSON schema every skill's input
// must satisfy (diff + mcp_url required).
func StandardSkillInputSchema() json.RawMessage {
	return GenerateSchema(&reviewInputShape{})
}

// StandardSkillOutputSchema returns the JSON schema every skill's
// output must satisfy (findings required).
func StandardSkillOutputSchema() json.RawMessage {
	return GenerateSchema(&reviewOutputShape{})
}

// toolOutputShape is reflected to build the standard tool output
// schema: every tool's output requires ok, stdout, stderr.
type toolOutputShape struct {
	Ok     bool   `json:"ok"`
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// StandardToolOutputSchema returns the JSON schema every tool's output
// must satisfy.
func StandardToolOutputSchema() json.RawMessage {
	return GenerateSchema(&toolOutputShape{})
}

// envelopeShape is reflected to build the JSON-RPC envelope schema:
// jsonrpc, id and method are required. Params is optional and left
// unconstrained here; it is checked separately, against the invoked
// skill's own input schema, once the skill is known.
type envelopeShape struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// StandardEnvelopeSchema returns the JSON schema every inbound
// JSON-RPC request must satisfy before method dispatch runs.
func StandardEnvelopeSchema() json.RawMessage {
	return GenerateSchema(&envelopeShape{})
}

// agentCardShape is reflected to build the agent-card schema. Its
// skills and auth fields are left untyped rather than mirroring
// AgentCard's own Skill/Auth structs, since Skill carries
// json.RawMessage schema documents that reflect poorly as a nested
// schema; per-skill structural checks run separately via ValidateSkill
// once the card is decoded.
type agentCardShape struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	ProtocolVersion string `json:"protocol_version"`
	Endpoint        string `json:"endpoint"`
	Skills          []any  `json:"skills"`
	Auth            any    `json:"auth"`
}

// StandardAgentCardSchema returns the JSON schema an inbound agent
// card must satisfy before discovery accepts it.
func StandardAgentCardSchema() json.RawMessage {
	return GenerateSchema(&agentCardShape{})
}
