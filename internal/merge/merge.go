// Package merge flattens, deduplicates, sorts and buckets the findings
// from a fan-out run into one deterministic, byte-identical-across-runs
// result.
package merge

import (
	"sort"

	"github.com/fedreview/mesh/internal/invoker"
	"github.com/fedreview/mesh/internal/telemetry"
	"github.com/fedreview/mesh/internal/wire"
)

// ToolRun records one invocation that ended in an error (agent, skill
// and error message), surfaced alongside the merged findings for the
// reporter's tool-runs section.
type ToolRun struct {
	AgentName string `json:"agent_name"`
	SkillID   string `json:"skill_id"`
	Error     string `json:"error,omitempty"`
}

// Result is the fully merged, sorted, bucketed output of one run.
type Result struct {
	Findings   []wire.Finding             `json:"findings"`
	BySeverity map[wire.Severity]int      `json:"by_severity"`
	ToolRuns   []ToolRun                  `json:"tool_runs,omitempty"`
	Metrics    *telemetry.Snapshot        `json:"metrics,omitempty"`
}

// Merge flattens every InvokeResult's findings (failed invocations
// contribute none), deduplicates by signature keeping the first
// occurrence in input order, sorts by descending severity rank then
// ascending (file, line, title), and buckets every severity key —
// present even at zero.
func Merge(results []invoker.InvokeResult, metrics *telemetry.Snapshot) Result {
	seen := make(map[string]struct{})
	var flat []wire.Finding

	for _, r := range results {
		if r.Error != "" {
			continue
		}
		for _, f := range r.Findings {
			sig := f.Signature()
			if _, dup := seen[sig]; dup {
				continue
			}
			seen[sig] = struct{}{}
			flat = append(flat, f)
		}
	}

	sort.SliceStable(flat, func(i, j int) bool {
		a, b := flat[i], flat[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Title < b.Title
	})

	bySeverity := make(map[wire.Severity]int, len(wire.AllSeverities))
	for _, s := range wire.AllSeverities {
		bySeverity[s] = 0
	}
	for _, f := range flat {
		bySeverity[f.Severity]++
	}

	var toolRuns []ToolRun
	for _, r := range results {
		if r.Error != "" {
			toolRuns = append(toolRuns, ToolRun{AgentName: r.AgentName, SkillID: r.SkillID, Error: r.Error})
		}
	}

	return Result{
		Findings:   flat,
		BySeverity: bySeverity,
		ToolRuns:   toolRuns,
		Metrics:    metrics,
	}
}
