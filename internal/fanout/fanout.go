// Package fanout runs concurrent invocation of a diff across every
// discovered (agent, skill) pair, with no admission control, aggregated
// behind one per-run metrics collector.
package fanout

import (
	"context"
	"sync"

	"github.com/fedreview/mesh/internal/discovery"
	"github.com/fedreview/mesh/internal/invoker"
	"github.com/fedreview/mesh/internal/telemetry"
)

// Outcome is the return value of a full fan-out run: every invocation's
// result, the run's latency metrics, and the correlation ID the run was
// tagged with.
type Outcome struct {
	Results       []invoker.InvokeResult
	Metrics       *telemetry.RunMetrics
	CorrelationID string
}

// Run constructs one task per (agent, skill) pair across agents, runs
// them concurrently, and awaits all before returning. correlationID may
// be empty, in which case a fresh one is minted for the run.
func Run(ctx context.Context, inv *invoker.Invoker, agents []discovery.DiscoveredAgent, diff, mcpURL, correlationID string) Outcome {
	if correlationID == "" {
		correlationID = telemetry.NewCorrelationID()
	}
	metrics := telemetry.NewRunMetrics(correlationID)

	type task struct {
		agent   discovery.DiscoveredAgent
		skillID string
	}

	var tasks []task
	for _, agent := range agents {
		for _, skill := range agent.Card.Skills {
			tasks = append(tasks, task{agent: agent, skillID: skill.ID})
		}
	}

	results := make([]invoker.InvokeResult, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, t := range tasks {
		go func(index int, t task) {
			defer wg.Done()
			results[index] = inv.InvokeAgent(ctx, t.agent, t.skillID, diff, mcpURL, correlationID, metrics)
		}(i, t)
	}
	wg.Wait()

	metrics.Finish()

	return Outcome{Results: results, Metrics: metrics, CorrelationID: correlationID}
}
