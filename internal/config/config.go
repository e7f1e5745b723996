// Package config assembles the one immutable configuration struct every
// process in the federation is built from: options are
// grouped into a struct passed at construction, never read from the
// environment at scattered call sites.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is process-wide and lives for the process lifetime.
type Config struct {
	// Invoker envelope.
	AgentTimeout         time.Duration
	ToolTimeout          time.Duration
	MaxRetries           int
	MaxNegotiationRounds int

	// Circuit breaker.
	FailureThreshold int
	Cooldown         time.Duration

	// Tool service authorization.
	AuthEnabled bool
	TokenStoreDSN string

	// Protocol.
	SupportedProtocolVersion string

	// Listen addresses.
	OrchestratorListenAddr string
	ToolServiceListenAddr  string

	// AgentToken is the bearer token the orchestrator presents to
	// agents, if any.
	AgentToken string

	// ToolToken is the bearer token the orchestrator presents to the
	// tool service when satisfying a negotiation request on an agent's
	// behalf.
	ToolToken string

	// DependencyAuditOAuth configures the client-credentials grant the
	// dependency_audit tool uses to reach its external advisory feed.
	DependencyAuditOAuth OAuthConfig
}

// OAuthConfig is the client-credentials configuration for an
// OAuth2-guarded external tool call, sized to the
// golang.org/x/oauth2/clientcredentials grant type.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Load reads an optional .env file via godotenv and then the process
// environment into a Config, falling back to fixed defaults wherever a
// variable is unset.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		// Absence of a .env file is not fatal; plain env vars still apply.
		_ = godotenv.Load(envFile)
	}

	agentTimeout, err := durationMsEnv("AGENT_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}
	toolTimeout, err := durationMsEnv("TOOL_TIMEOUT_MS", 3000)
	if err != nil {
		return nil, err
	}
	maxRetries, err := intEnv("MAX_RETRIES", 1)
	if err != nil {
		return nil, err
	}
	maxRounds, err := intEnv("MAX_NEGOTIATION_ROUNDS", 2)
	if err != nil {
		return nil, err
	}
	failureThreshold, err := intEnv("CIRCUIT_FAILURE_THRESHOLD", 3)
	if err != nil {
		return nil, err
	}
	cooldown, err := durationMsEnv("CIRCUIT_COOLDOWN_MS", 30000)
	if err != nil {
		return nil, err
	}
	authEnabled, err := boolEnv("AUTH_ENABLED", true)
	if err != nil {
		return nil, err
	}

	return &Config{
		AgentTimeout:             agentTimeout,
		ToolTimeout:              toolTimeout,
		MaxRetries:               maxRetries,
		MaxNegotiationRounds:     maxRounds,
		FailureThreshold:         failureThreshold,
		Cooldown:                 cooldown,
		AuthEnabled:              authEnabled,
		TokenStoreDSN:            stringEnv("TOKEN_STORE_DSN", "file:tokens.db?mode=memory&cache=shared"),
		SupportedProtocolVersion: stringEnv("SUPPORTED_PROTOCOL_VERSION", "1.0"),
		OrchestratorListenAddr:   stringEnv("ORCHESTRATOR_LISTEN_ADDR", ":8080"),
		ToolServiceListenAddr:    stringEnv("TOOL_SERVICE_LISTEN_ADDR", "127.0.0.1:9100"),
		AgentToken:               os.Getenv("AGENT_BEARER_TOKEN"),
		ToolToken:                os.Getenv("TOOL_BEARER_TOKEN"),
		DependencyAuditOAuth: OAuthConfig{
			ClientID:     os.Getenv("DEP_AUDIT_CLIENT_ID"),
			ClientSecret: os.Getenv("DEP_AUDIT_CLIENT_SECRET"),
			TokenURL:     os.Getenv("DEP_AUDIT_TOKEN_URL"),
			Scopes:       nil,
		},
	}, nil
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func durationMsEnv(key string, fallbackMs int) (time.Duration, error) {
	n, err := intEnv(key, fallbackMs)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Millisecond, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, v, err)
	}
	return b, nil
}
