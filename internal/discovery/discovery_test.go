package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedreview/mesh/internal/wire"
)

// newCardServer starts a card server whose handler builds the card
// from the server's own base URL, so tests get a same-host endpoint by
// default; cardFn can still override Endpoint to exercise the
// cross-host rejection path.
func newCardServer(t *testing.T, cardFn func(baseURL string) wire.AgentCard) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc(CardPath, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(cardFn(srv.URL))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func cardFor(endpoint string) wire.AgentCard {
	return wire.AgentCard{
		Name:            "agent",
		Version:         "0.1",
		ProtocolVersion: "1.0",
		Endpoint:        endpoint,
		Skills: []wire.Skill{{
			ID:           "review.security",
			Version:      "1.0",
			InputSchema:  wire.StandardSkillInputSchema(),
			OutputSchema: wire.StandardSkillOutputSchema(),
		}},
		Auth: wire.Auth{Type: wire.AuthNone},
	}
}

func sameHostCard(baseURL string) wire.AgentCard {
	return cardFor(baseURL + "/rpc")
}

func TestDiscoverAcceptsCompatibleAgent(t *testing.T) {
	srv := newCardServer(t, sameHostCard)

	agents := Discover(context.Background(), srv.Client(), []string{srv.URL}, "1.0", nil)
	require.Len(t, agents, 1)
	assert.Equal(t, "agent", agents[0].Card.Name)
}

func TestDiscoverDropsCrossHostEndpoint(t *testing.T) {
	srv := newCardServer(t, func(baseURL string) wire.AgentCard {
		return cardFor("http://evil.example/rpc")
	})

	agents := Discover(context.Background(), srv.Client(), []string{srv.URL}, "1.0", nil)
	assert.Empty(t, agents)
}

func TestDiscoverDropsIncompatibleMajorVersion(t *testing.T) {
	srv := newCardServer(t, func(baseURL string) wire.AgentCard {
		card := sameHostCard(baseURL)
		card.ProtocolVersion = "2.0"
		return card
	})

	agents := Discover(context.Background(), srv.Client(), []string{srv.URL}, "1.0", nil)
	assert.Empty(t, agents)
}

func TestDiscoverAcceptsMinorVersionMismatch(t *testing.T) {
	srv := newCardServer(t, func(baseURL string) wire.AgentCard {
		card := sameHostCard(baseURL)
		card.ProtocolVersion = "1.5"
		return card
	})

	agents := Discover(context.Background(), srv.Client(), []string{srv.URL}, "1.0", nil)
	assert.Len(t, agents, 1)
}

func TestDiscoverDropsUnreachableURLWithoutAffectingOthers(t *testing.T) {
	good := newCardServer(t, sameHostCard)

	agents := Discover(context.Background(), good.Client(), []string{good.URL, "http://127.0.0.1:1"}, "1.0", nil)
	require.Len(t, agents, 1)
	assert.Equal(t, good.URL, agents[0].BaseURL)
}

func TestDiscoverDropsMissingRequiredFields(t *testing.T) {
	srv := newCardServer(t, func(baseURL string) wire.AgentCard {
		card := cardFor("")
		card.Skills = nil
		return card
	})

	agents := Discover(context.Background(), srv.Client(), []string{srv.URL}, "1.0", nil)
	assert.Empty(t, agents)
}

func TestDiscoverDropsCardFailingSkillValidation(t *testing.T) {
	srv := newCardServer(t, func(baseURL string) wire.AgentCard {
		card := sameHostCard(baseURL)
		card.Skills[0].InputSchema = nil
		return card
	})

	agents := Discover(context.Background(), srv.Client(), []string{srv.URL}, "1.0", nil)
	assert.Empty(t, agents)
}

func TestDiscoverDropsCardMissingTopLevelField(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(CardPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"0.1","protocol_version":"1.0","endpoint":"http://x/rpc","skills":[],"auth":{"type":"none"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	agents := Discover(context.Background(), srv.Client(), []string{srv.URL}, "1.0", nil)
	assert.Empty(t, agents)
}

func TestIsProtocolCompatible(t *testing.T) {
	assert.True(t, IsProtocolCompatible("1.0", "1.5"))
	assert.False(t, IsProtocolCompatible("1.0", "2.0"))
	assert.False(t, IsProtocolCompatible("1.0", "not-a-version"))
}
