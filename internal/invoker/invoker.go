// Package invoker implements the timeout-bounded, retrying,
// circuit-guarded negotiation loop that turns one (agent, skill, diff)
// triple into an InvokeResult. It never panics or returns a Go error
// from InvokeAgent itself — every failure mode is encoded into the
// returned InvokeResult.
package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fedreview/mesh/internal/breaker"
	"github.com/fedreview/mesh/internal/config"
	"github.com/fedreview/mesh/internal/discovery"
	"github.com/fedreview/mesh/internal/telemetry"
	"github.com/fedreview/mesh/internal/wire"
)

// InvokeResult is the outcome of one invokeAgent call. Exactly one of
// (Findings non-nil-but-possibly-empty, Error non-empty) applies: a
// present Error means the call did not produce findings.
type InvokeResult struct {
	AgentName  string
	SkillID    string
	Findings   []wire.Finding
	Error      string
	Retried    bool
	DurationMs int64
}

// Invoker holds the shared, process-wide collaborators an invocation
// needs: an HTTP client, the circuit-breaker table, and configuration,
// bundled behind one type instead of passed as loose parameters.
type Invoker struct {
	client  *http.Client
	breaker *breaker.Table
	cfg     *config.Config
	logger  *slog.Logger
}

// New builds an Invoker with its own http.Client; per-call timeouts are
// applied via context.
func New(cfg *config.Config, breakerTable *breaker.Table, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = telemetry.Base()
	}
	return &Invoker{
		client:  &http.Client{},
		breaker: breakerTable,
		cfg:     cfg,
		logger:  logger,
	}
}

// InvokeAgent runs the full negotiation loop against one agent for one
// skill. It never throws.
func (inv *Invoker) InvokeAgent(ctx context.Context, agent discovery.DiscoveredAgent, skillID, diff, mcpURL, correlationID string, metrics *telemetry.RunMetrics) InvokeResult {
	start := time.Now()
	result := InvokeResult{AgentName: agent.Card.Name, SkillID: skillID}
	endpoint := agent.Card.Endpoint

	additionalContext := map[string]any{}

	for round := 0; round < inv.cfg.MaxNegotiationRounds; round++ {
		input := wire.InvokeInput{Diff: diff, MCPURL: mcpURL, AdditionalContext: additionalContext}

		resp, retried, err := inv.sendRound(ctx, agent, skillID, correlationID, input)
		result.Retried = result.Retried || retried
		if err != nil {
			result.Error = err.Error()
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}

		if !resp.IsNegotiation() {
			inv.breaker.RecordSuccess(endpoint)
			result.Findings = inv.validFindings(agent.Card.Name, resp.ReviewResult.Findings)
			result.DurationMs = time.Since(start).Milliseconds()
			if metrics != nil {
				metrics.RecordAgentLatency(agent.Card.Name, time.Duration(result.DurationMs)*time.Millisecond)
			}
			return result
		}

		// Negotiation: the agent wants more context before it can
		// finish. Fetch it from the tool service, then start the next
		// round.
		reqType := resp.NeedMoreInfo.RequestType
		toolName := resp.NeedMoreInfo.RequestParams.Tool

		if toolName == "" {
			result.Error = fmt.Sprintf("Agent requested %s but tool call failed", reqType)
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}

		toolResp, toolRetried, toolErr := inv.callTool(ctx, mcpURL, toolName, resp.NeedMoreInfo.RequestParams.Args, correlationID, metrics)
		result.Retried = result.Retried || toolRetried

		if toolErr != nil {
			inv.breaker.RecordSuccess(endpoint)
			result.Error = fmt.Sprintf("Agent requested %s via %s but tool call failed: %s", reqType, toolName, toolErr.Error())
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}
		if !toolResp.Ok {
			inv.breaker.RecordSuccess(endpoint)
			msg := fmt.Sprintf("Agent requested %s via %s but tool call failed", reqType, toolName)
			if toolResp.Stderr != "" {
				msg += ": " + toolResp.Stderr
			}
			result.Error = msg
			result.DurationMs = time.Since(start).Milliseconds()
			return result
		}

		inv.breaker.RecordSuccess(endpoint)
		additionalContext[string(reqType)] = toolResp.Stdout
		// Round r's tool calls are fully resolved before round r+1's
		// agent call begins: the loop body above already awaited
		// callTool synchronously, so this ordering guarantee holds by
		// construction.
	}

	inv.breaker.RecordFailure(endpoint)
	result.Error = fmt.Sprintf("Max negotiation rounds (%d) exceeded", inv.cfg.MaxNegotiationRounds)
	result.DurationMs = time.Since(start).Milliseconds()
	return result
}

// validFindings drops any finding that fails Finding.Validate, logging
// a warning per drop, so a misbehaving agent's malformed data never
// reaches the merger or the rendered report.
func (inv *Invoker) validFindings(agentName string, findings []wire.Finding) []wire.Finding {
	valid := make([]wire.Finding, 0, len(findings))
	for _, f := range findings {
		if err := f.Validate(); err != nil {
			inv.logger.Warn("invoker: dropping invalid finding", "agent", agentName, "error", err)
			continue
		}
		valid = append(valid, f)
	}
	return valid
}

// sendRound performs the inner retry loop for a single negotiation
// round's agent call. On success it returns
// the decoded AgentResponse without touching the circuit breaker,
// leaving success/failure attribution to the caller, which knows
// whether the reply was terminal or a negotiation step. On failure it
// has already recorded the appropriate breaker outcome and returns a
// terminal error.
func (inv *Invoker) sendRound(ctx context.Context, agent discovery.DiscoveredAgent, skillID, correlationID string, input wire.InvokeInput) (wire.AgentResponse, bool, error) {
	endpoint := agent.Card.Endpoint
	maxAttempts := 1 + inv.cfg.MaxRetries
	retried := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if !inv.breaker.IsAvailable(endpoint) {
			return wire.AgentResponse{}, retried, fmt.Errorf("Circuit breaker open for %s", agent.Card.Name)
		}

		jsonResp, status, err := inv.sendOnce(ctx, agent, skillID, correlationID, input)
		if err != nil {
			if attempt < maxAttempts-1 && isRetryable(err) {
				retried = true
				inv.logger.Warn("invoker: retrying agent call", "agent", agent.Card.Name, "error", err)
				continue
			}
			inv.breaker.RecordFailure(endpoint)
			if isRetryable(err) && isTimeoutOrAbort(err) {
				return wire.AgentResponse{}, retried, fmt.Errorf("Timeout after %dms", inv.cfg.AgentTimeout.Milliseconds())
			}
			return wire.AgentResponse{}, retried, err
		}

		if status < 200 || status >= 300 {
			inv.breaker.RecordFailure(endpoint)
			return wire.AgentResponse{}, retried, fmt.Errorf("HTTP %d", status)
		}
		if jsonResp.Error != nil {
			inv.breaker.RecordFailure(endpoint)
			return wire.AgentResponse{}, retried, errors.New(jsonResp.Error.Message)
		}

		agentResp, decErr := wire.DecodeAgentResponse(jsonResp.Result)
		if decErr != nil {
			inv.breaker.RecordFailure(endpoint)
			return wire.AgentResponse{}, retried, decErr
		}
		return agentResp, retried, nil
	}

	// Unreachable: the loop above always returns on its final
	// iteration.
	return wire.AgentResponse{}, retried, fmt.Errorf("Circuit breaker open for %s", agent.Card.Name)
}

// sendOnce performs exactly one HTTP round-trip to an agent's RPC
// endpoint, arming the AGENT_TIMEOUT_MS deadline. The returned error is
// non-nil only for transport-level failures; a well-formed HTTP
// response, whatever its status, is returned with a nil error.
func (inv *Invoker) sendOnce(ctx context.Context, agent discovery.DiscoveredAgent, skillID, correlationID string, input wire.InvokeInput) (wire.JSONRPCResponse, int, error) {
	params := wire.InvokeParams{Skill: skillID, Input: input}
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return wire.JSONRPCResponse{}, 0, fmt.Errorf("marshal params: %w", err)
	}
	envelope := wire.JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      telemetry.NewCorrelationID(),
		Method:  "invoke",
		Params:  paramsRaw,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return wire.JSONRPCResponse{}, 0, fmt.Errorf("marshal envelope: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.cfg.AgentTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, agent.Card.Endpoint, bytes.NewReader(body))
	if err != nil {
		return wire.JSONRPCResponse{}, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(telemetry.CorrelationHeader, correlationID)
	if inv.cfg.AgentToken != "" {
		req.Header.Set("Authorization", "Bearer "+inv.cfg.AgentToken)
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return wire.JSONRPCResponse{}, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return wire.JSONRPCResponse{}, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return wire.JSONRPCResponse{}, resp.StatusCode, nil
	}

	var jsonResp wire.JSONRPCResponse
	if err := json.Unmarshal(raw, &jsonResp); err != nil {
		return wire.JSONRPCResponse{}, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return jsonResp, resp.StatusCode, nil
}

// classifyTransportError normalizes context deadline/cancellation into
// messages the "timeout"/"aborted" substring classifier recognizes, so
// a *http.Client timeout (which surfaces as "context deadline
// exceeded") is treated the same as any other timeout cause.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timeout: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("aborted: %w", err)
	}
	return err
}

func isTimeoutOrAbort(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "aborted")
}

// callTool performs the tool sub-invocation triggered by a negotiation
// request: an identical timeout/retry envelope to the agent call, but
// bounded by the tool timeout, and never consulting or updating the
// agent's circuit breaker — a flaky tool must not fail-fast an
// otherwise healthy agent.
func (inv *Invoker) callTool(ctx context.Context, mcpURL, tool string, args map[string]any, correlationID string, metrics *telemetry.RunMetrics) (wire.ToolCallResponse, bool, error) {
	maxAttempts := 1 + inv.cfg.MaxRetries
	retried := false

	for attempt := 0; attempt < maxAttempts; attempt++ {
		start := time.Now()
		resp, status, err := inv.callToolOnce(ctx, mcpURL, tool, args, correlationID)
		elapsed := time.Since(start)
		if metrics != nil {
			metrics.RecordToolLatency(tool, elapsed)
		}

		if err != nil {
			if attempt < maxAttempts-1 && isRetryable(err) {
				retried = true
				inv.logger.Warn("invoker: retrying tool call", "tool", tool, "error", err)
				continue
			}
			if isRetryable(err) && isTimeoutOrAbort(err) {
				return wire.ToolCallResponse{}, retried, fmt.Errorf("Timeout after %dms", inv.cfg.ToolTimeout.Milliseconds())
			}
			return wire.ToolCallResponse{}, retried, err
		}

		if status < 200 || status >= 300 {
			if resp.Stderr == "" {
				resp.Stderr = fmt.Sprintf("HTTP %d", status)
			}
			resp.Ok = false
		}
		return resp, retried, nil
	}

	return wire.ToolCallResponse{}, retried, fmt.Errorf("tool call exhausted retries")
}

func (inv *Invoker) callToolOnce(ctx context.Context, mcpURL, tool string, args map[string]any, correlationID string) (wire.ToolCallResponse, int, error) {
	reqBody, err := json.Marshal(wire.ToolCallRequest{Tool: tool, Args: args})
	if err != nil {
		return wire.ToolCallResponse{}, 0, fmt.Errorf("marshal tool call: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, inv.cfg.ToolTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, strings.TrimRight(mcpURL, "/")+"/call", bytes.NewReader(reqBody))
	if err != nil {
		return wire.ToolCallResponse{}, 0, fmt.Errorf("build tool request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(telemetry.CorrelationHeader, correlationID)
	if inv.cfg.ToolToken != "" {
		req.Header.Set("Authorization", "Bearer "+inv.cfg.ToolToken)
	}

	resp, err := inv.client.Do(req)
	if err != nil {
		return wire.ToolCallResponse{}, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return wire.ToolCallResponse{}, resp.StatusCode, fmt.Errorf("read tool response: %w", err)
	}

	var toolResp wire.ToolCallResponse
	if err := json.Unmarshal(raw, &toolResp); err != nil {
		return wire.ToolCallResponse{}, resp.StatusCode, fmt.Errorf("decode tool response: %w", err)
	}
	return toolResp, resp.StatusCode, nil
}
