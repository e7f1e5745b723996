// Package report renders a merged review result as human-readable
// text, grouped by severity in descending order.
package report

import (
	"fmt"
	"strings"

	"github.com/fedreview/mesh/internal/merge"
	"github.com/fedreview/mesh/internal/wire"
)

// Render produces the full textual report: a summary line, one section
// per non-empty severity (descending), and a trailing tool-runs
// section.
func Render(result merge.Result) string {
	var b strings.Builder

	b.WriteString(summaryLine(result.BySeverity))
	b.WriteString("\n")

	bySeverity := make(map[wire.Severity][]wire.Finding)
	for _, f := range result.Findings {
		bySeverity[f.Severity] = append(bySeverity[f.Severity], f)
	}

	for _, sev := range wire.AllSeverities {
		findings := bySeverity[sev]
		if len(findings) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s (%d)\n", strings.ToUpper(string(sev)), len(findings)))
		for _, f := range findings {
			b.WriteString("  ")
			b.WriteString(formatFinding(f))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(toolRunsSection(result.ToolRuns))

	return b.String()
}

func summaryLine(bySeverity map[wire.Severity]int) string {
	return fmt.Sprintf(
		"Review summary: %d critical, %d high, %d medium, %d low",
		bySeverity[wire.SeverityCritical],
		bySeverity[wire.SeverityHigh],
		bySeverity[wire.SeverityMedium],
		bySeverity[wire.SeverityLow],
	)
}

// formatFinding renders "[sev] title; evidence; recommendation[;
// file[:line]]".
func formatFinding(f wire.Finding) string {
	line := fmt.Sprintf("[%s] %s; %s; %s", f.Severity, f.Title, f.Evidence, f.Recommendation)
	if f.File != "" {
		if f.Line > 0 {
			line += fmt.Sprintf("; %s:%d", f.File, f.Line)
		} else {
			line += fmt.Sprintf("; %s", f.File)
		}
	}
	return line
}

func toolRunsSection(runs []merge.ToolRun) string {
	if len(runs) == 0 {
		return "Tool runs: none\n"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Tool runs (%d failed):\n", len(runs)))
	for _, r := range runs {
		b.WriteString(fmt.Sprintf("  %s/%s: %s\n", r.AgentName, r.SkillID, r.Error))
	}
	return b.String()
}
