// Command security-agent is a reference review agent that flags
// hardcoded secrets in a diff's added lines.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/fedreview/mesh/internal/agentrpc"
	"github.com/fedreview/mesh/internal/telemetry"
	"github.com/fedreview/mesh/internal/wire"
)

const (
	skillID  = "review.security"
	agentVer = "0.1"
)

type secretPattern struct {
	re             *regexp.Regexp
	title          string
	severity       wire.Severity
	recommendation string
}

var secretPatterns = []secretPattern{
	{
		re:             regexp.MustCompile(`(?i)(API_KEY|api_key|apiKey)\s*[=:]\s*['"]([^'"]+)['"]`),
		title:          "API Key",
		severity:       wire.SeverityHigh,
		recommendation: "Move API keys to environment variables or a secrets manager",
	},
	{
		re:             regexp.MustCompile(`(?i)(PASSWORD|password|passwd)\s*[=:]\s*['"]([^'"]+)['"]`),
		title:          "Hardcoded password",
		severity:       wire.SeverityCritical,
		recommendation: "Use environment variables or a secrets manager for passwords",
	},
	{
		re:             regexp.MustCompile(`(?i)(SECRET|secret|SECRET_KEY|secret_key)\s*[=:]\s*['"]([^'"]+)['"]`),
		title:          "Hardcoded secret",
		severity:       wire.SeverityHigh,
		recommendation: "Move secrets to environment variables or a secrets manager",
	},
	{
		re:             regexp.MustCompile(`(sk_live_|sk_test_|pk_live_|pk_test_)[a-zA-Z0-9]+`),
		title:          "Stripe API Key",
		severity:       wire.SeverityCritical,
		recommendation: "Remove Stripe keys from code; use environment variables",
	},
	{
		re:             regexp.MustCompile(`(ghp_|gho_|ghu_|ghs_|ghr_)[a-zA-Z0-9]+`),
		title:          "GitHub Token",
		severity:       wire.SeverityCritical,
		recommendation: "Remove GitHub tokens from code; use environment variables",
	},
}

func analyzeDiff(diff string) []wire.Finding {
	var findings []wire.Finding
	currentFile := ""
	currentLine := 0

	hunkHeader := regexp.MustCompile(`\+(\d+)`)

	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ b/"):
			currentFile = strings.TrimPrefix(line, "+++ b/")
			continue
		case strings.HasPrefix(line, "@@ "):
			if m := hunkHeader.FindStringSubmatch(line); m != nil {
				n, _ := strconv.Atoi(m[1])
				currentLine = n - 1
			}
			continue
		}

		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "-") {
				currentLine++
			}
			continue
		}

		currentLine++
		content := line[1:]

		for _, p := range secretPatterns {
			if m := p.re.FindString(content); m != "" {
				findings = append(findings, wire.Finding{
					Severity:       p.severity,
					Title:          p.title,
					Evidence:       "Found: " + m,
					Recommendation: p.recommendation,
					File:           currentFile,
					Line:           currentLine,
				})
			}
		}
	}
	return findings
}

func main() {
	addr := flag.String("addr", "127.0.0.1:9210", "listen address")
	flag.Parse()

	card := wire.AgentCard{
		Name:            "security-agent",
		Version:         agentVer,
		ProtocolVersion: "1.0",
		Endpoint:        "http://" + *addr + "/rpc",
		Skills: []wire.Skill{{
			ID:           skillID,
			Version:      "1.0",
			Description:  "Detects hardcoded secrets in a diff's added lines",
			InputSchema:  wire.StandardSkillInputSchema(),
			OutputSchema: wire.StandardSkillOutputSchema(),
		}},
		Auth: wire.Auth{Type: wire.AuthNone},
	}

	logger := telemetry.Base().With("agent", card.Name)
	server := agentrpc.New(card, logger)
	server.Handle(skillID, func(input wire.InvokeInput) (wire.AgentResponse, error) {
		return wire.AgentResponse{ReviewResult: wire.ReviewResult{Findings: analyzeDiff(input.Diff)}}, nil
	})

	logger.Info("security agent listening", "addr", *addr)
	if err := http.ListenAndServe(*addr, server.Mux()); err != nil {
		slog.Error("security agent stopped", "error", err)
	}
}
