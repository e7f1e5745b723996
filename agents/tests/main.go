// Command tests-agent is a reference review agent that flags new
// production files introduced by a diff with no corresponding test
// file touched in the same diff.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fedreview/mesh/internal/agentrpc"
	"github.com/fedreview/mesh/internal/telemetry"
	"github.com/fedreview/mesh/internal/wire"
)

const skillID = "review.tests"

func changedFiles(diff string) []string {
	var files []string
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			files = append(files, strings.TrimPrefix(line, "+++ b/"))
		}
	}
	return files
}

func isTestFile(path string) bool {
	return strings.Contains(path, "_test.") || strings.Contains(path, "/test/") || strings.HasPrefix(path, "test/")
}

func isProductionSource(path string) bool {
	if isTestFile(path) {
		return false
	}
	for _, ext := range []string{".go", ".py", ".ts", ".js", ".java", ".rb"} {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func analyzeCoverage(diff string) []wire.Finding {
	files := changedFiles(diff)
	hasTest := false
	var production []string
	for _, f := range files {
		if isTestFile(f) {
			hasTest = true
			continue
		}
		if isProductionSource(f) {
			production = append(production, f)
		}
	}
	if hasTest || len(production) == 0 {
		return nil
	}

	var findings []wire.Finding
	for _, f := range production {
		findings = append(findings, wire.Finding{
			Severity:       wire.SeverityMedium,
			Title:          "Missing test coverage",
			Evidence:       "New or modified production file with no accompanying test change: " + f,
			Recommendation: "Add or update a test file covering the change in " + f,
			File:           f,
		})
	}
	return findings
}

func main() {
	addr := flag.String("addr", "127.0.0.1:9212", "listen address")
	flag.Parse()

	card := wire.AgentCard{
		Name:            "tests-agent",
		Version:         "0.1",
		ProtocolVersion: "1.0",
		Endpoint:        "http://" + *addr + "/rpc",
		Skills: []wire.Skill{{
			ID:           skillID,
			Version:      "1.0",
			Description:  "Flags production file changes with no accompanying test change",
			InputSchema:  wire.StandardSkillInputSchema(),
			OutputSchema: wire.StandardSkillOutputSchema(),
		}},
		Auth: wire.Auth{Type: wire.AuthNone},
	}

	logger := telemetry.Base().With("agent", card.Name)
	server := agentrpc.New(card, logger)
	server.Handle(skillID, func(input wire.InvokeInput) (wire.AgentResponse, error) {
		return wire.AgentResponse{ReviewResult: wire.ReviewResult{Findings: analyzeCoverage(input.Diff)}}, nil
	})

	logger.Info("tests agent listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, server.Mux()); err != nil {
		slog.Error("tests agent stopped", "error", err)
	}
}
