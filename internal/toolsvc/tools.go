package toolsvc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/fedreview/mesh/internal/config"
	"github.com/fedreview/mesh/internal/wire"
)

// lintTool runs a static pass over a diff's added lines, flagging bare
// TODO markers and trailing whitespace — the kind of check a real lint
// tool would surface, kept intentionally simple since the underlying
// linter is out of scope.
func lintTool(args map[string]any) wire.ToolCallResponse {
	diff, _ := args["diff"].(string)
	var issues []string
	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}
		content := line[1:]
		if strings.Contains(content, "TODO") {
			issues = append(issues, "TODO marker: "+strings.TrimSpace(content))
		}
		if strings.HasSuffix(content, " ") || strings.HasSuffix(content, "\t") {
			issues = append(issues, "trailing whitespace: "+strings.TrimRight(content, " \t"))
		}
	}
	return wire.ToolCallResponse{Ok: true, Stdout: strings.Join(issues, "\n")}
}

// runTestsTool reports a synthetic test run. A real implementation
// would shell out to the project's test runner against the changed
// files; this one just confirms the diff touches at least one file
// under a directory named "test" or ending in "_test", which is the
// signal agents/tests uses for its missing-test-coverage finding.
func runTestsTool(args map[string]any) wire.ToolCallResponse {
	diff, _ := args["diff"].(string)
	hasTest := false
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++ b/") {
			path := strings.TrimPrefix(line, "+++ b/")
			if strings.Contains(path, "_test.") || strings.Contains(path, "/test/") || strings.HasPrefix(path, "test/") {
				hasTest = true
			}
		}
	}
	if hasTest {
		return wire.ToolCallResponse{Ok: true, Stdout: "PASS: test file present in diff"}
	}
	return wire.ToolCallResponse{Ok: true, Stdout: "no test files touched by this diff"}
}

// DependencyAuditClient guards the dependency_audit tool's outbound
// call to an external advisory feed behind an OAuth2 client-credentials
// grant, since this is a service-to-service check with no
// user-delegated flow.
type DependencyAuditClient struct {
	httpClient *http.Client
	feedURL    string
}

// NewDependencyAuditClient builds an OAuth2-guarded HTTP client from
// cfg. If cfg.TokenURL is unset, the returned client's Audit calls
// report the tool as unconfigured rather than attempting a network
// call.
func NewDependencyAuditClient(cfg config.OAuthConfig, feedURL string) *DependencyAuditClient {
	if cfg.TokenURL == "" {
		return &DependencyAuditClient{}
	}
	ccConfig := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		Scopes:       cfg.Scopes,
	}
	return &DependencyAuditClient{
		httpClient: ccConfig.Client(context.Background()),
		feedURL:    feedURL,
	}
}

// Audit checks a manifest against the configured advisory feed.
func (d *DependencyAuditClient) Audit(args map[string]any) wire.ToolCallResponse {
	if d.httpClient == nil {
		return wire.ToolCallResponse{Ok: false, Stderr: "dependency_audit is not configured"}
	}
	manifest, _ := args["manifest"].(string)
	if manifest == "" {
		return wire.ToolCallResponse{Ok: false, Stderr: "manifest is required"}
	}

	req, err := http.NewRequest(http.MethodPost, d.feedURL, strings.NewReader(manifest))
	if err != nil {
		return wire.ToolCallResponse{Ok: false, Stderr: fmt.Sprintf("build advisory request: %v", err)}
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return wire.ToolCallResponse{Ok: false, Stderr: fmt.Sprintf("advisory feed unreachable: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return wire.ToolCallResponse{Ok: false, Stderr: fmt.Sprintf("read advisory response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return wire.ToolCallResponse{Ok: false, Stderr: fmt.Sprintf("advisory feed returned HTTP %d", resp.StatusCode)}
	}
	return wire.ToolCallResponse{Ok: true, Stdout: string(body)}
}
