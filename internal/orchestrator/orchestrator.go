// Package orchestrator wires discovery, fan-out, merge and reporting
// together behind one HTTP handler: POST a diff, get back a
// deterministic merged review.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fedreview/mesh/internal/breaker"
	"github.com/fedreview/mesh/internal/config"
	"github.com/fedreview/mesh/internal/discovery"
	"github.com/fedreview/mesh/internal/fanout"
	"github.com/fedreview/mesh/internal/invoker"
	"github.com/fedreview/mesh/internal/merge"
	"github.com/fedreview/mesh/internal/report"
	"github.com/fedreview/mesh/internal/telemetry"
)

// Orchestrator holds the collaborators one review run needs: the
// default candidate list, the shared circuit-breaker table, and the
// invoker built on top of it.
type Orchestrator struct {
	cfg               *config.Config
	defaultCandidates []string
	client            *http.Client
	breaker           *breaker.Table
	invoker           *invoker.Invoker
	logger            *slog.Logger
}

// New builds an Orchestrator. defaultCandidates seeds discovery when a
// request doesn't override the candidate list.
func New(cfg *config.Config, defaultCandidates []string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = telemetry.Base()
	}
	breakerTable := breaker.NewTable(cfg.FailureThreshold, cfg.Cooldown)
	return &Orchestrator{
		cfg:               cfg,
		defaultCandidates: defaultCandidates,
		client:            &http.Client{},
		breaker:           breakerTable,
		invoker:           invoker.New(cfg, breakerTable, logger),
		logger:            logger,
	}
}

// reviewRequest is the body of POST /review.
type reviewRequest struct {
	Diff       string   `json:"diff"`
	MCPURL     string   `json:"mcp_url"`
	Candidates []string `json:"candidates,omitempty"`
}

// reviewResponse is the body of a successful POST /review.
type reviewResponse struct {
	CorrelationID string                `json:"correlation_id"`
	Result        merge.Result          `json:"result"`
	Report        string                `json:"report"`
	AgentCount    int                   `json:"agents_discovered"`
}

// Mux builds the orchestrator's HTTP surface: POST /review and GET
// /health.
func (o *Orchestrator) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/review", o.handleReview)
	mux.HandleFunc("/health", o.handleHealth)
	return mux
}

func (o *Orchestrator) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (o *Orchestrator) handleReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	candidateURLs := req.Candidates
	if len(candidateURLs) == 0 {
		candidateURLs = o.defaultCandidates
	}
	mcpURL := req.MCPURL
	if mcpURL == "" {
		mcpURL = "http://" + o.cfg.ToolServiceListenAddr
	}

	correlationID := r.Header.Get(telemetry.CorrelationHeader)
	if correlationID == "" {
		correlationID = telemetry.NewCorrelationID()
	}
	logger := telemetry.ForRun(correlationID)

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	agents := discovery.Discover(ctx, o.client, candidateURLs, o.cfg.SupportedProtocolVersion, logger)
	logger.Info("discovery complete", "candidates", len(candidateURLs), "accepted", len(agents))

	outcome := fanout.Run(ctx, o.invoker, agents, req.Diff, mcpURL, correlationID)

	snapshot := outcome.Metrics.Snapshot()
	result := merge.Merge(outcome.Results, &snapshot)

	resp := reviewResponse{
		CorrelationID: correlationID,
		Result:        result,
		Report:        report.Render(result),
		AgentCount:    len(agents),
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(telemetry.CorrelationHeader, correlationID)
	json.NewEncoder(w).Encode(resp)
}
