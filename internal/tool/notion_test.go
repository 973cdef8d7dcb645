package tool

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"toolbridge/internal/config"
	"toolbridge/internal/domain"
)

func notionStub(t *testing.T, handler http.HandlerFunc) (*httptest.Server, NotionConfig) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NotionConfig{
		Token:      config.NewCredential("notion-token"),
		DatabaseID: config.NewCredential("db-1"),
		APIBase:    srv.URL,
		Client:     srv.Client(),
	}
}

// --- get_notion_notes ---

func TestNotionNotes_Success(t *testing.T) {
	var gotPath, gotAuth, gotVersion string
	var gotBody notionQueryRequest
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{
			"results": [
				{"id": "p1", "properties": {"Name": {"title": [{"text": {"content": "Meeting notes"}}]}}},
				{"id": "p2", "properties": {"Name": {"title": []}}}
			]
		}`)
	})

	tool := NewNotionNotesTool(cfg)
	out, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if gotPath != "/v1/databases/db-1/query" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotAuth != "Bearer notion-token" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotVersion != "2022-06-28" {
		t.Fatalf("unexpected Notion-Version: %q", gotVersion)
	}
	if gotBody.PageSize != 10 {
		t.Fatalf("expected default page_size 10, got %d", gotBody.PageSize)
	}

	var notes []noteSummary
	if err := json.Unmarshal([]byte(out), &notes); err != nil {
		t.Fatalf("payload should be JSON: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0] != (noteSummary{ID: "p1", Title: "Meeting notes"}) {
		t.Fatalf("unexpected first note: %+v", notes[0])
	}
	if notes[1].Title != "(untitled)" {
		t.Fatalf("empty title should fall back, got %+v", notes[1])
	}
}

func TestNotionNotes_MaxResults(t *testing.T) {
	var gotBody notionQueryRequest
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"results": []}`)
	})

	tool := NewNotionNotesTool(cfg)
	out, err := tool.Execute(context.Background(), map[string]any{"max_results": 3.0})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if gotBody.PageSize != 3 {
		t.Fatalf("expected page_size 3, got %d", gotBody.PageSize)
	}
	if out != "[]" {
		t.Fatalf("expected empty array payload, got %q", out)
	}
}

func TestNotionNotes_MissingBoth(t *testing.T) {
	var hits atomic.Int64
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	cfg.Token = config.Credential{}
	cfg.DatabaseID = config.Credential{}

	tool := NewNotionNotesTool(cfg)
	_, err := tool.Execute(context.Background(), nil)
	terr := wantKind(t, err, domain.ErrMissingCredential)
	if !strings.Contains(terr.Message, config.EnvNotionToken) || !strings.Contains(terr.Message, config.EnvNotionDB) {
		t.Fatalf("message should name both env vars: %q", terr.Message)
	}
	if hits.Load() != 0 {
		t.Fatal("no request may be sent without credentials")
	}
}

func TestNotionNotes_MissingDatabaseOnly(t *testing.T) {
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {})
	cfg.DatabaseID = config.Credential{}

	tool := NewNotionNotesTool(cfg)
	_, err := tool.Execute(context.Background(), nil)
	terr := wantKind(t, err, domain.ErrMissingCredential)
	if !strings.Contains(terr.Message, config.EnvNotionDB) {
		t.Fatalf("message should name the database env var: %q", terr.Message)
	}
	if strings.Contains(terr.Message, config.EnvNotionToken) {
		t.Fatalf("message should not mention the configured token: %q", terr.Message)
	}
}

func TestNotionNotes_UpstreamError(t *testing.T) {
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message": "API token is invalid."}`)
	})

	tool := NewNotionNotesTool(cfg)
	_, err := tool.Execute(context.Background(), nil)
	terr := wantKind(t, err, domain.ErrUpstream)
	if terr.Status != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", terr.Status)
	}
}

// --- create_notion_note ---

func TestNotionCreateNote_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		io.WriteString(w, `{"id": "page-9"}`)
	})

	tool := NewNotionCreateNoteTool(cfg)
	out, err := tool.Execute(context.Background(), map[string]any{
		"title":   "Shopping list",
		"content": "milk, eggs",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if gotPath != "/v1/pages" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	parent, _ := gotBody["parent"].(map[string]any)
	if parent["database_id"] != "db-1" {
		t.Fatalf("unexpected parent: %v", gotBody["parent"])
	}
	props, _ := gotBody["properties"].(map[string]any)
	raw, _ := json.Marshal(props)
	if !strings.Contains(string(raw), "Shopping list") || !strings.Contains(string(raw), "milk, eggs") {
		t.Fatalf("properties should carry title and content: %s", raw)
	}
	if !strings.Contains(string(raw), "rich_text") {
		t.Fatalf("content should be a rich_text property: %s", raw)
	}

	var created map[string]string
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("payload should be JSON: %v", err)
	}
	if created["id"] != "page-9" {
		t.Fatalf("unexpected result: %v", created)
	}
}

func TestNotionCreateNote_UpstreamError(t *testing.T) {
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"message": "body failed validation"}`)
	})

	tool := NewNotionCreateNoteTool(cfg)
	_, err := tool.Execute(context.Background(), map[string]any{"title": "t", "content": "c"})
	terr := wantKind(t, err, domain.ErrUpstream)
	if terr.Status != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", terr.Status)
	}
	if !strings.Contains(terr.Message, "400") {
		t.Fatalf("message should carry the status: %q", terr.Message)
	}
}

func TestNotionCreateNote_MissingCredential(t *testing.T) {
	var hits atomic.Int64
	_, cfg := notionStub(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})
	cfg.Token = config.Credential{}

	tool := NewNotionCreateNoteTool(cfg)
	_, err := tool.Execute(context.Background(), map[string]any{"title": "t", "content": "c"})
	wantKind(t, err, domain.ErrMissingCredential)
	if hits.Load() != 0 {
		t.Fatal("no request may be sent without credentials")
	}
}
