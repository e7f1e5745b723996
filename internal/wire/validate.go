package wire

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// majorMinor matches a MAJOR.MINOR version string, e.g. "1.0", "2.13".
var majorMinor = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// ValidMajorMinor reports whether s matches the MAJOR.MINOR shape
// required of Skill.Version and AgentCard.ProtocolVersion.
func ValidMajorMinor(s string) bool {
	return majorMinor.MatchString(s)
}

// Major extracts the major component of a MAJOR.MINOR version string.
// The caller must have already validated the string with
// ValidMajorMinor.
func Major(s string) string {
	return strings.SplitN(s, ".", 2)[0]
}

// ValidateSchemaDoc validates a raw JSON document against a raw
// JSON-schema document using xeipuuv/gojsonschema.
func ValidateSchemaDoc(schemaDoc, doc json.RawMessage) error {
	schemaLoader := gojsonschema.NewBytesLoader(schemaDoc)
	docLoader := gojsonschema.NewBytesLoader(doc)

	schema, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	result, err := schema.Validate(docLoader)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	if !result.Valid() {
		var sb strings.Builder
		for i, desc := range result.Errors() {
			if i > 0 {
				sb.WriteString("; ")
			}
			sb.WriteString(desc.String())
		}
		return fmt.Errorf("schema validation failed: %s", sb.String())
	}
	return nil
}

// requiredFieldsPresent reports whether a raw JSON-schema document's
// top-level "required" array contains every name in want. ValidateSkill
// checks a skill's input and output schemas against this, since the
// required-field set is an explicit invariant independent of whatever
// else a schema allows.
func requiredFieldsPresent(schemaDoc json.RawMessage, want ...string) bool {
	var parsed struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(schemaDoc, &parsed); err != nil {
		return false
	}
	have := make(map[string]bool, len(parsed.Required))
	for _, r := range parsed.Required {
		have[r] = true
	}
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}

// ValidateSkill checks the structural invariants a Skill must satisfy:
// non-empty ID, MAJOR.MINOR version, an input schema requiring at
// least diff and mcp_url, and an output schema requiring findings.
func ValidateSkill(s Skill) error {
	if s.ID == "" {
		return fmt.Errorf("skill: id is required")
	}
	if !ValidMajorMinor(s.Version) {
		return fmt.Errorf("skill %q: version %q is not MAJOR.MINOR", s.ID, s.Version)
	}
	if len(s.InputSchema) == 0 || !requiredFieldsPresent(s.InputSchema, "diff", "mcp_url") {
		return fmt.Errorf("skill %q: input schema must require diff and mcp_url", s.ID)
	}
	if len(s.OutputSchema) == 0 || !requiredFieldsPresent(s.OutputSchema, "findings") {
		return fmt.Errorf("skill %q: output schema must require findings", s.ID)
	}
	return nil
}

// ValidateAgentCard checks the structural invariants an AgentCard must
// satisfy: required fields present, at least one skill (each
// individually valid), a well-formed absolute endpoint URL, and a
// known auth type.
func ValidateAgentCard(c AgentCard) error {
	if c.Name == "" {
		return fmt.Errorf("agent card: name is required")
	}
	if c.Endpoint == "" {
		return fmt.Errorf("agent card %q: endpoint is required", c.Name)
	}
	endpoint, err := url.Parse(c.Endpoint)
	if err != nil || !endpoint.IsAbs() {
		return fmt.Errorf("agent card %q: endpoint %q is not an absolute URL", c.Name, c.Endpoint)
	}
	if !ValidMajorMinor(c.ProtocolVersion) {
		return fmt.Errorf("agent card %q: protocol_version %q is not MAJOR.MINOR", c.Name, c.ProtocolVersion)
	}
	if len(c.Skills) == 0 {
		return fmt.Errorf("agent card %q: at least one skill is required", c.Name)
	}
	for _, s := range c.Skills {
		if err := ValidateSkill(s); err != nil {
			return fmt.Errorf("agent card %q: %w", c.Name, err)
		}
	}
	switch c.Auth.Type {
	case AuthNone, AuthBearer:
	default:
		return fmt.Errorf("agent card %q: auth.type %q is not one of none, bearer", c.Name, c.Auth.Type)
	}
	return nil
}

// EndpointSameHost reports whether an agent card's endpoint points at
// the same host that served the card.
func EndpointSameHost(cardSourceURL, endpoint string) bool {
	src, err1 := url.Parse(cardSourceURL)
	dst, err2 := url.Parse(endpoint)
	if err1 != nil || err2 != nil {
		return false
	}
	return src.Hostname() == dst.Hostname()
}

// ValidateJSONRPCRequest checks the envelope invariants required
// before any method dispatch happens: version pinned to "2.0", a
// non-empty id, and a non-empty method name.
func ValidateJSONRPCRequest(req JSONRPCRequest) error {
	if req.JSONRPC != "2.0" {
		return fmt.Errorf("jsonrpc: version must be \"2.0\", got %q", req.JSONRPC)
	}
	if req.ID == "" {
		return fmt.Errorf("jsonrpc: id is required")
	}
	if req.Method == "" {
		return fmt.Errorf("jsonrpc: method is required")
	}
	return nil
}

// ValidateInvokeParams checks that an invoke call's params carry a
// skill name and at least one of a non-empty diff or mcp_url (an empty
// diff alone is accepted), and that a non-empty mcp_url parses as a URL.
func ValidateInvokeParams(p InvokeParams) error {
	if p.Skill == "" {
		return fmt.Errorf("invoke params: skill is required")
	}
	if p.Input.Diff == "" && p.Input.MCPURL == "" {
		return fmt.Errorf("invoke params: input.diff or input.mcp_url is required")
	}
	if p.Input.MCPURL != "" {
		if _, err := url.Parse(p.Input.MCPURL); err != nil {
			return fmt.Errorf("invoke params: mcp_url is not a valid URL: %w", err)
		}
	}
	return nil
}
