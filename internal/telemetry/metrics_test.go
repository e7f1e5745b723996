package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistogramFromEmpty(t *testing.T) {
	h := histogramFrom(nil)
	assert.Equal(t, Histogram{}, h)
}

func TestHistogramFromSingleSample(t *testing.T) {
	h := histogramFrom([]time.Duration{50 * time.Millisecond})
	assert.Equal(t, 50*time.Millisecond, h.P50)
	assert.Equal(t, 50*time.Millisecond, h.P95)
	assert.Equal(t, 1, h.Count)
}

func TestHistogramFromMultipleSamples(t *testing.T) {
	samples := []time.Duration{
		10 * time.Millisecond, 100 * time.Millisecond, 20 * time.Millisecond,
		30 * time.Millisecond, 40 * time.Millisecond,
	}
	h := histogramFrom(samples)
	assert.Equal(t, 5, h.Count)
	assert.True(t, h.P50 <= h.P95)
}

func TestRunMetricsRecordsAndSnapshots(t *testing.T) {
	m := NewRunMetrics("corr-1")
	m.RecordAgentLatency("agent-a", 20*time.Millisecond)
	m.RecordAgentLatency("agent-a", 40*time.Millisecond)
	m.RecordToolLatency("lint", 5*time.Millisecond)
	m.Finish()

	snap := m.Snapshot()
	assert.Equal(t, "corr-1", snap.CorrelationID)
	assert.Equal(t, 2, snap.AgentLatencies["agent-a"].Count)
	assert.Equal(t, 1, snap.ToolLatencies["lint"].Count)
	assert.GreaterOrEqual(t, snap.TotalDurationMs, int64(0))
}

func TestRunMetricsSnapshotBeforeFinishStillReportsElapsed(t *testing.T) {
	m := NewRunMetrics("corr-2")
	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.TotalDurationMs, int64(0))
}
