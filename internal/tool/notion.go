package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"toolbridge/internal/config"
	"toolbridge/internal/domain"
)

const (
	defaultNotionAPIBase = "https://api.notion.com"
	notionVersion        = "2022-06-28"
)

// NotionConfig wires the Notion-backed tools. Client is optional and
// defaults to the shared pooled client.
type NotionConfig struct {
	Token      config.Credential
	DatabaseID config.Credential
	APIBase    string
	Client     *http.Client
}

func (c NotionConfig) withDefaults() NotionConfig {
	if c.APIBase == "" {
		c.APIBase = defaultNotionAPIBase
	}
	if c.Client == nil {
		c.Client = SharedHTTPClient(0)
	}
	return c
}

type notionQueryRequest struct {
	PageSize int `json:"page_size"`
}

type notionQueryResponse struct {
	Results []notionPage `json:"results"`
}

type notionPage struct {
	ID         string           `json:"id"`
	Properties notionProperties `json:"properties"`
}

type notionProperties struct {
	Name notionTitleField `json:"Name"`
}

type notionTitleField struct {
	Title []notionRichText `json:"title"`
}

type notionRichTextField struct {
	RichText []notionRichText `json:"rich_text"`
}

type notionRichText struct {
	Text notionText `json:"text"`
}

type notionText struct {
	Content string `json:"content"`
}

type notionParent struct {
	DatabaseID string `json:"database_id"`
}

type notionCreatePageRequest struct {
	Parent     notionParent   `json:"parent"`
	Properties map[string]any `json:"properties"`
}

type noteSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func notionText1(content string) []notionRichText {
	return []notionRichText{{Text: notionText{Content: content}}}
}

func notionHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")
}

// --- NotionNotesTool ---

// NotionNotesTool fetches recent notes from the configured Notion database.
type NotionNotesTool struct {
	token      config.Credential
	databaseID config.Credential
	apiBase    string
	client     *http.Client
}

func NewNotionNotesTool(cfg NotionConfig) *NotionNotesTool {
	cfg = cfg.withDefaults()
	return &NotionNotesTool{token: cfg.Token, databaseID: cfg.DatabaseID, apiBase: cfg.APIBase, client: cfg.Client}
}

func (t *NotionNotesTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "get_notion_notes",
		Description: "Fetch recent notes from the configured Notion database.",
		Effect:      domain.EffectNetwork,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"max_results": {Type: "integer", Description: "Maximum number of notes to return (default: 10)"},
			},
		},
	}
}

func (t *NotionNotesTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	token, databaseID, terr := notionCredentials(t.token, t.databaseID)
	if terr != nil {
		return "", terr
	}

	maxResults := ArgsInt(args, "max_results", 10)

	jsonBody, err := json.Marshal(notionQueryRequest{PageSize: maxResults})
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "marshal query")
	}

	endpoint := fmt.Sprintf("%s/v1/databases/%s/query", t.apiBase, url.PathEscape(databaseID))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "build notion request")
	}
	notionHeaders(req, token)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "notion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", upstreamFailure("notion", resp.StatusCode, respBody)
	}

	var query notionQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&query); err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "decode notion response")
	}

	notes := make([]noteSummary, 0, len(query.Results))
	for _, page := range query.Results {
		title := "(untitled)"
		if len(page.Properties.Name.Title) > 0 {
			title = page.Properties.Name.Title[0].Text.Content
		}
		notes = append(notes, noteSummary{ID: page.ID, Title: title})
	}
	out, err := json.Marshal(notes)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "encode note list")
	}
	return string(out), nil
}

// --- NotionCreateNoteTool ---

// NotionCreateNoteTool creates a new note page in the configured database.
type NotionCreateNoteTool struct {
	token      config.Credential
	databaseID config.Credential
	apiBase    string
	client     *http.Client
}

func NewNotionCreateNoteTool(cfg NotionConfig) *NotionCreateNoteTool {
	cfg = cfg.withDefaults()
	return &NotionCreateNoteTool{token: cfg.Token, databaseID: cfg.DatabaseID, apiBase: cfg.APIBase, client: cfg.Client}
}

func (t *NotionCreateNoteTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "create_notion_note",
		Description: "Create a new note in the configured Notion database.",
		Effect:      domain.EffectNetwork,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"title":   {Type: "string", Description: "Note title"},
				"content": {Type: "string", Description: "Note body text"},
			},
			Required: []string{"title", "content"},
		},
	}
}

func (t *NotionCreateNoteTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	token, databaseID, terr := notionCredentials(t.token, t.databaseID)
	if terr != nil {
		return "", terr
	}

	payload := notionCreatePageRequest{
		Parent: notionParent{DatabaseID: databaseID},
		Properties: map[string]any{
			"Name":    notionTitleField{Title: notionText1(ArgsString(args, "title"))},
			"Content": notionRichTextField{RichText: notionText1(ArgsString(args, "content"))},
		},
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "marshal page")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.apiBase+"/v1/pages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "build notion request")
	}
	notionHeaders(req, token)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "notion request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", upstreamFailure("notion", resp.StatusCode, respBody)
	}

	var created notionPage
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "decode notion response")
	}

	out, err := json.Marshal(map[string]string{"id": created.ID})
	if err != nil {
		return "", domain.Wrapf(domain.ErrUpstream, err, "encode result")
	}
	return string(out), nil
}

// notionCredentials checks both required Notion settings at once so the
// failure message names everything that is missing.
func notionCredentials(token, databaseID config.Credential) (string, string, *domain.ToolError) {
	tok, tokOK := token.Value()
	db, dbOK := databaseID.Value()
	switch {
	case !tokOK && !dbOK:
		return "", "", domain.Errf(domain.ErrMissingCredential, "Notion token and database ID not configured (set %s and %s)", config.EnvNotionToken, config.EnvNotionDB)
	case !tokOK:
		return "", "", domain.Errf(domain.ErrMissingCredential, "Notion token not configured (set %s)", config.EnvNotionToken)
	case !dbOK:
		return "", "", domain.Errf(domain.ErrMissingCredential, "Notion database ID not configured (set %s)", config.EnvNotionDB)
	}
	return tok, db, nil
}

// Compile-time interface checks.
var (
	_ domain.Tool = (*NotionNotesTool)(nil)
	_ domain.Tool = (*NotionCreateNoteTool)(nil)
)
