// Command generate_schema writes the wire-level JSON schema documents
// for the review protocol's shared DTOs to schemas/, giving agent and
// tool authors outside this module a machine-readable contract to
// validate against without importing the Go types themselves.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fedreview/mesh/internal/wire"
)

type sharedDTOs struct {
	SkillInput  json.RawMessage `json:"skill_input"`
	SkillOutput json.RawMessage `json:"skill_output"`
	ToolOutput  json.RawMessage `json:"tool_output"`
	AgentCard   json.RawMessage `json:"agent_card"`
}

func main() {
	doc := sharedDTOs{
		SkillInput:  wire.StandardSkillInputSchema(),
		SkillOutput: wire.StandardSkillOutputSchema(),
		ToolOutput:  wire.StandardToolOutputSchema(),
		AgentCard:   wire.GenerateSchema(&wire.AgentCard{}),
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		panic(err)
	}

	outputDir := "schemas"
	if _, err := os.Stat(outputDir); os.IsNotExist(err) {
		if err := os.Mkdir(outputDir, os.ModePerm); err != nil {
			panic(err)
		}
	}

	outputFile := filepath.Join(outputDir, "review_protocol_schema.json")
	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		panic(err)
	}

	absPath, _ := filepath.Abs(outputFile)
	fmt.Println("wrote schema:", absPath)
}
