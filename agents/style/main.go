// Command style-agent is a reference review agent that demonstrates
// the negotiation extension: it always requests the tool service's
// lint output before producing findings, exercising the
// NeedMoreInfo/additional_context round-trip internal/invoker drives.
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

const skillID = "review.style"

func main() {
	addr := flag.String("addr", "127.0.0.1:9211", "listen address")
	flag.Parse()

	card := wire.AgentCard{
		Name:            "style-agent",
		Version:         "0.1",
		ProtocolVersion: "1.0",
		Endpoint:        "http://" + *addr + "/rpc",
		Skills: []wire.Skill{{
			ID:           skillID,
			Version:      "1.0",
			Description:  "Flags style issues surfaced by the lint tool",
			InputSchema:  wire.StandardSkillInputSchema(),
			OutputSchema: wire.StandardSkillOutputSchema(),
		}},
		Auth: wire.Auth{Type: wire.AuthNone},
	}

	logger := telemetry.Base().With("agent", card.Name)
	server := agentrpc.New(card, logger)
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
		findings := findingsFromLint(output)
		return wire.AgentResponse{ReviewResult: wire.ReviewResult{Findings: findings}}, nil
	})

	logger.Info("style agent listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, server.Mux()); err != nil {
		slog.Error("style agent stopped", "error", err)
	}
}

func findingsFromLint(lintOutput string) []wire.Finding {
	lintOutput = strings.TrimSpace(lintOutput)
	if lintOutput == "" {
		return nil
	}
	lines := strings.Split(lintOutput, "\n")
	return []wire.Finding{{
		Severity:       wire.SeverityMedium,
		Title:          "Lint issues found",
		Evidence:       lines[0],
		Recommendation: "Address the lint findings before merging",
	}}
}
