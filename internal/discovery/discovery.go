// Package discovery fetches agent cards from a list of candidate base
// URLs in parallel, filtering by schema validity and protocol-version
// compatibility.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/fedreview/mesh/internal/wire"
)

// CardPath is the well-known path every agent serves its card from.
const CardPath = "/.well-known/agent-card.json"

// agentCardSchema is the schema every fetched card must satisfy before
// it is unmarshaled and business-rule checked.
var agentCardSchema = wire.StandardAgentCardSchema()

// DiscoveredAgent is an AgentCard paired with the base URL it was
// fetched from, having passed every discovery filter. It lives only for
// the duration of one run.
type DiscoveredAgent struct {
	Card    wire.AgentCard
	BaseURL string
}

// IsProtocolCompatible reports whether an agent's protocol version is
// compatible with the orchestrator's: their major components must be
// equal. A minor mismatch is accepted.
func IsProtocolCompatible(supported, agentVersion string) bool {
	if !wire.ValidMajorMinor(supported) || !wire.ValidMajorMinor(agentVersion) {
		return false
	}
	return wire.Major(supported) == wire.Major(agentVersion)
}

type fetchResult struct {
	index int
	agent *DiscoveredAgent
}

// Discover fetches `<base>/.well-known/agent-card.json` from every
// candidate URL concurrently. A URL is dropped (with a logged warning),
// never fatal to the run, when: the request fails, the response isn't
// HTTP-ok, the body doesn't parse or pass schema validation, the
// card's endpoint isn't on the same host that served it, or the card's
// protocol version is incompatible. Input order of surviving entries
// is preserved.
func Discover(ctx context.Context, client *http.Client, candidateBaseURLs []string, supportedProtocolVersion string, logger *slog.Logger) []DiscoveredAgent {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}

	results := make(chan fetchResult, len(candidateBaseURLs))
	for i, base := range candidateBaseURLs {
		go func(index int, baseURL string) {
			agent, err := fetchOne(ctx, client, baseURL, supportedProtocolVersion)
			if err != nil {
				logger.Warn("discovery: dropping candidate", "base_url", baseURL, "error", err)
				results <- fetchResult{index: index, agent: nil}
				return
			}
			results <- fetchResult{index: index, agent: agent}
		}(i, base)
	}

	ordered := make([]*DiscoveredAgent, len(candidateBaseURLs))
	for range candidateBaseURLs {
		r := <-results
		ordered[r.index] = r.agent
	}

	discovered := make([]DiscoveredAgent, 0, len(ordered))
	for _, a := range ordered {
		if a != nil {
			discovered = append(discovered, *a)
		}
	}
	return discovered
}

func fetchOne(ctx context.Context, client *http.Client, baseURL, supportedProtocolVersion string) (*DiscoveredAgent, error) {
	cardURL := baseURL + CardPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cardURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch card: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read card body: %w", err)
	}

	if err := wire.ValidateSchemaDoc(agentCardSchema, body); err != nil {
		return nil, fmt.Errorf("card failed schema validation: %w", err)
	}

	var card wire.AgentCard
	if err := json.Unmarshal(body, &card); err != nil {
		return nil, fmt.Errorf("parse card: %w", err)
	}

	if err := wire.ValidateAgentCard(card); err != nil {
		return nil, fmt.Errorf("card failed validation: %w", err)
	}
	if !wire.EndpointSameHost(cardURL, card.Endpoint) {
		return nil, fmt.Errorf("endpoint %q is not on the same host as %q", card.Endpoint, cardURL)
	}
	if !IsProtocolCompatible(supportedProtocolVersion, card.ProtocolVersion) {
		return nil, fmt.Errorf("incompatible protocol version %q (supported %q)", card.ProtocolVersion, supportedProtocolVersion)
	}

	return &DiscoveredAgent{Card: card, BaseURL: baseURL}, nil
}
