package toolsvc

import (
	"github.com/fedreview/mesh/internal/wire"
)

// ToolFunc implements one tool's behavior. It never returns a Go
// error: a failure the caller should see is expressed as
// ToolCallResponse{Ok: false, Stderr: ...}, keeping handled tool
// failures distinct from transport failures.
type ToolFunc func(args map[string]any) wire.ToolCallResponse

// Catalog is the fixed set of tools the service exposes: their wire
// definitions for GET /tools, and their implementations for POST
// /call.
type Catalog struct {
	definitions []wire.ToolDefinition
	funcs       map[string]ToolFunc
}

// NewCatalog builds the standard three-tool catalog: lint, run_tests,
// and dependency_audit.
func NewCatalog(oauth *DependencyAuditClient) *Catalog {
	c := &Catalog{funcs: make(map[string]ToolFunc)}

	c.register(wire.ToolDefinition{
		Name:         "lint",
		Description:  "Static lint pass over the diff's added lines",
		InputSchema:  wire.GenerateSchema(lintInputShape{}),
		OutputSchema: wire.StandardToolOutputSchema(),
	}, lintTool)

	c.register(wire.ToolDefinition{
		Name:         "run_tests",
		Description:  "Runs the project's test suite against the changed files",
		InputSchema:  wire.GenerateSchema(runTestsInputShape{}),
		OutputSchema: wire.StandardToolOutputSchema(),
	}, runTestsTool)

	c.register(wire.ToolDefinition{
		Name:         "dependency_audit",
		Description:  "Checks changed dependency manifests against an external advisory feed",
		InputSchema:  wire.GenerateSchema(dependencyAuditInputShape{}),
		OutputSchema: wire.StandardToolOutputSchema(),
	}, oauth.Audit)

	return c
}

func (c *Catalog) register(def wire.ToolDefinition, fn ToolFunc) {
	c.definitions = append(c.definitions, def)
	c.funcs[def.Name] = fn
}

// Definitions returns the catalog for GET /tools.
func (c *Catalog) Definitions() wire.ToolCatalog {
	return wire.ToolCatalog{Tools: c.definitions}
}

// Exists reports whether name is a registered tool.
func (c *Catalog) Exists(name string) bool {
	_, ok := c.funcs[name]
	return ok
}

// Call executes a registered tool. The caller must have already
// checked Exists.
func (c *Catalog) Call(name string, args map[string]any) wire.ToolCallResponse {
	return c.funcs[name](args)
}

type lintInputShape struct {
	Diff string `json:"diff" jsonschema:"required"`
}

type runTestsInputShape struct {
	Diff string `json:"diff" jsonschema:"required"`
}

type dependencyAuditInputShape struct {
	Manifest string `json:"manifest" jsonschema:"required"`
}
