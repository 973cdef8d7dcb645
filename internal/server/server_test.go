package server

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"toolbridge/internal/domain"
	"toolbridge/internal/tool"

	"github.com/mark3labs/mcp-go/mcp"
)

type echoTool struct{}

func (t *echoTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "echo",
		Description: "Echo the given text back.",
		Effect:      domain.EffectNone,
		Schema: domain.InputSchema{
			Properties: map[string]domain.Property{
				"text":   {Type: "string", Description: "Text to echo"},
				"repeat": {Type: "integer"},
			},
			Required: []string{"text"},
		},
	}
}

func (t *echoTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return "echo: " + tool.ArgsString(args, "text"), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg, err := tool.NewRegistry(tool.RegistryConfig{Logger: testLogger()}, &echoTool{})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	return New(Config{Registry: reg, Name: "toolbridge-test", Version: "0.0.1", Logger: testLogger()})
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(result.Content))
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

// --- handler ---

func TestHandler_Success(t *testing.T) {
	s := newTestServer(t)
	handler := s.handlerFor("echo")

	result, err := handler(context.Background(), callRequest("echo", map[string]any{"text": "hello"}))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if result.IsError {
		t.Fatalf("expected success result, got error: %s", resultText(t, result))
	}
	if got := resultText(t, result); got != "echo: hello" {
		t.Errorf("unexpected payload: %q", got)
	}
}

func TestHandler_ToolFailureIsResultNotProtocolError(t *testing.T) {
	s := newTestServer(t)
	handler := s.handlerFor("echo")

	result, err := handler(context.Background(), callRequest("echo", map[string]any{}))
	if err != nil {
		t.Fatalf("tool failure must not surface as protocol error, got: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing required argument")
	}
	if got := resultText(t, result); got != "invalid_arguments: missing required argument: text" {
		t.Errorf("unexpected error text: %q", got)
	}
}

func TestHandler_NilArguments(t *testing.T) {
	s := newTestServer(t)
	handler := s.handlerFor("echo")

	result, err := handler(context.Background(), callRequest("echo", nil))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when no arguments were sent")
	}
}

// --- tool conversion ---

func TestToMCPTool(t *testing.T) {
	desc := (&echoTool{}).Descriptor()
	converted := toMCPTool(desc)

	if converted.Name != "echo" {
		t.Errorf("name not carried over: %q", converted.Name)
	}
	if converted.Description != desc.Description {
		t.Errorf("description not carried over: %q", converted.Description)
	}
	if converted.InputSchema.Type != "object" {
		t.Errorf("expected object schema, got %q", converted.InputSchema.Type)
	}
	if len(converted.InputSchema.Required) != 1 || converted.InputSchema.Required[0] != "text" {
		t.Errorf("required list not carried over: %v", converted.InputSchema.Required)
	}

	textProp, ok := converted.InputSchema.Properties["text"].(map[string]any)
	if !ok {
		t.Fatalf("text property missing or wrong shape: %#v", converted.InputSchema.Properties["text"])
	}
	if textProp["type"] != "string" || textProp["description"] != "Text to echo" {
		t.Errorf("text property not carried over: %#v", textProp)
	}

	repeatProp, ok := converted.InputSchema.Properties["repeat"].(map[string]any)
	if !ok {
		t.Fatalf("repeat property missing: %#v", converted.InputSchema.Properties)
	}
	if _, hasDesc := repeatProp["description"]; hasDesc {
		t.Error("empty description should be omitted")
	}
}

func TestNew_ExposesAllTools(t *testing.T) {
	reg, err := tool.NewRegistry(tool.RegistryConfig{Logger: testLogger()}, &echoTool{})
	if err != nil {
		t.Fatal(err)
	}
	s := New(Config{Registry: reg, Name: "toolbridge-test", Version: "0.0.1", Logger: testLogger()})
	if s.mcp == nil {
		t.Fatal("mcp server not constructed")
	}
	if s.registry != reg {
		t.Error("registry not retained")
	}
}
