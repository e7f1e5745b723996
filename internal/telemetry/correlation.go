// Package telemetry provides the correlation-ID, structured-logging and
// per-run latency-metrics primitives threaded through every hop of a
// review run.
package telemetry

import "github.com/google/uuid"

// CorrelationHeader is the HTTP header every outbound orchestrator
// request carries.
const CorrelationHeader = "X-Correlation-ID"

// NewCorrelationID mints a fresh correlation ID.
func NewCorrelationID() string {
	return uuid.NewString()
}
