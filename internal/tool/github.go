package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"toolbridge/internal/config"
	"toolbridge/internal/domain"
)

const (
	defaultGitHubAPIBase = "https://api.github.com"
	githubAccept         = "application/vnd.github.v3+json"

	// maxErrBody caps how much of an upstream error body ends up in messages.
	maxErrBody = 512
)

// upstreamFailure turns a non-2xx upstream response into a classified error
// carrying the status and a trimmed body excerpt.
func upstreamFailure(service string, status int, body []byte) *domain.ToolError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrBody {
		msg = msg[:maxErrBody] + "..."
	}
	if msg == "" {
		return domain.UpstreamErrf(status, "%s returned %d", service, status)
	}
	return domain.UpstreamErrf(status, "%s returned %d: %s", service, status, msg)
}

// GitHubConfig wires the GitHub-backed tools. Client is optional and
// defaults to the shared pooled client.
type GitHubConfig struct {
	Token   config.Credential
	APIBase string
	Client  *http.Client
}

func (c GitHubConfig) withDefaults() GitHubConfig {
	if c.APIBase == "" {
		c.APIBase = defaultGitHubAPIBase
	}
	if c.Client == nil {
		c.Client = SharedHTTPClient(0)
	}
	return c
}

type ghIssue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	State   string `json:"state"`
	HTMLURL string `json:"html_url"`
}

type ghCreateIssueRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type issueSummary struct {
	Title  string `json:"title"`
	Number int    `json:"number"`
	State  string `json:"state"`
}

type issueCreated struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// --- GitHubIssuesTool ---

// GitHubIssuesTool fetches recent issues from a repository.
type GitHubIssuesTool struct {
	token   config.Credential
	apiBase string
	client  *http.Client
}

func NewGitHubIssuesTool(cfg GitHubConfig) *GitHubIssuesTool {
	cfg = cfg.withDefaults()
	return &GitHubIssuesTool{token: cfg.Token, apiBase: cfg.APIBase, client: cfg.Client}
}

func (t *GitHubIssuesTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "get_github_issues",
		Description: "Fetch recent issues from a GitHub repository.",
		Effect:      domain.EffectNetwork,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"owner":       {Type: "string", Description: "Repository owner (user or organization)"},
				"repo":        {Type: "string", Description: "Repository name"},
				"state":       {Type: "string", Description: "Issue state filter: open, closed, or all (default: open)"},
				"max_results": {Type: "integer", Description: "Maximum number of issues to return (default: 10)"},
			},
			Required: []string{"owner", "repo"},
		},
	}
}

func (t *GitHubIssuesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	token, ok := t.token.Value()
	if !ok {
		return "", domain.Errf(domain.ErrMissingCredential, "GitHub token not configured (set %s)", config.EnvGitHubToken)
	}

	owner := ArgsString(args, "owner")
	repo := ArgsString(args, "repo")
	state := ArgsStringDefault(args, "state", "open")
	maxResults := ArgsInt(args, "max_results", 10)

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", t.apiBase, url.PathEscape(owner), url.PathEscape(repo))
	query := url.Values{}
	query.Set("state", state)
	query.Set("per_page", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "build github request")
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", githubAccept)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "github request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", upstreamFailure("github", resp.StatusCode, respBody)
	}

	var issues []ghIssue
	if err := json.NewDecoder(resp.Body).Decode(&issues); err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "decode github response")
	}

	summaries := make([]issueSummary, 0, len(issues))
	for _, is := range issues {
		summaries = append(summaries, issueSummary{Title: is.Title, Number: is.Number, State: is.State})
	}
	out, err := json.Marshal(summaries)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "encode issue list")
	}
	return string(out), nil
}

// --- GitHubCreateIssueTool ---

// GitHubCreateIssueTool opens a new issue in a repository.
type GitHubCreateIssueTool struct {
	token   config.Credential
	apiBase string
	client  *http.Client
}

func NewGitHubCreateIssueTool(cfg GitHubConfig) *GitHubCreateIssueTool {
	cfg = cfg.withDefaults()
	return &GitHubCreateIssueTool{token: cfg.Token, apiBase: cfg.APIBase, client: cfg.Client}
}

func (t *GitHubCreateIssueTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "create_github_issue",
		Description: "Create a new issue in a GitHub repository.",
		Effect:      domain.EffectNetwork,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"owner": {Type: "string", Description: "Repository owner (user or organization)"},
				"repo":  {Type: "string", Description: "Repository name"},
				"title": {Type: "string", Description: "Issue title"},
				"body":  {Type: "string", Description: "Issue body text"},
			},
			Required: []string{"owner", "repo", "title", "body"},
		},
	}
}

func (t *GitHubCreateIssueTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	token, ok := t.token.Value()
	if !ok {
		return "", domain.Errf(domain.ErrMissingCredential, "GitHub token not configured (set %s)", config.EnvGitHubToken)
	}

	owner := ArgsString(args, "owner")
	repo := ArgsString(args, "repo")

	payload := ghCreateIssueRequest{
		Title: ArgsString(args, "title"),
		Body:  ArgsString(args, "body"),
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "marshal issue")
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", t.apiBase, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "build github request")
	}
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", githubAccept)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "github request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", upstreamFailure("github", resp.StatusCode, respBody)
	}

	var created ghIssue
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "decode github response")
	}

	out, err := json.Marshal(issueCreated{Number: created.Number, URL: created.HTMLURL})
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "encode result")
	}
	return string(out), nil
}

// Compile-time interface checks.
var (
	_ domain.Tool = (*GitHubIssuesTool)(nil)
	_ domain.Tool = (*GitHubCreateIssueTool)(nil)
)
