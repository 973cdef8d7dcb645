package tool

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"toolbridge/internal/config"
	"toolbridge/internal/metrics"
)

func TestServerInfo_Payload(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Name = "bridge-test"
	cfg.Server.Version = "3.1.0"
	cfg.GitHub.Token = config.NewCredential("ghp_secret")
	cfg.Weather.APIKey = config.NewCredential("owm_secret")
	// Notion stays half-configured: token set, database missing.
	cfg.Notion.Token = config.NewCredential("nt_secret")

	collector := metrics.NewCollector()
	collector.RecordInvocation("get_weather")
	collector.RecordFailure("not_found")

	tool := NewServerInfoTool(ServerInfoConfig{Config: cfg, Metrics: collector, ToolCount: 9})
	out, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	var info serverInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("payload should be JSON: %v", err)
	}
	if info.ServerName != "bridge-test" || info.ServerVersion != "3.1.0" {
		t.Fatalf("unexpected identity: %+v", info)
	}
	if info.ToolCount != 9 {
		t.Fatalf("expected tool_count 9, got %d", info.ToolCount)
	}
	if info.Timestamp == "" {
		t.Fatal("timestamp should be set")
	}
	if !info.Integrations.GitHubConfigured || !info.Integrations.WeatherConfigured {
		t.Fatalf("expected github and weather configured: %+v", info.Integrations)
	}
	if info.Integrations.NotionConfigured {
		t.Fatal("notion needs both token and database ID to count as configured")
	}
	if info.Metrics == nil || info.Metrics.TotalInvocations != 1 || info.Metrics.TotalFailures != 1 {
		t.Fatalf("unexpected metrics: %+v", info.Metrics)
	}
}

func TestServerInfo_NeverLeaksSecrets(t *testing.T) {
	cfg := config.Defaults()
	cfg.GitHub.Token = config.NewCredential("ghp_secret_abc")
	cfg.Notion.Token = config.NewCredential("nt_secret_def")
	cfg.Notion.DatabaseID = config.NewCredential("db_secret_ghi")
	cfg.Weather.APIKey = config.NewCredential("owm_secret_jkl")

	tool := NewServerInfoTool(ServerInfoConfig{Config: cfg, ToolCount: 9})
	out, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	for _, secret := range []string{"ghp_secret_abc", "nt_secret_def", "db_secret_ghi", "owm_secret_jkl"} {
		if strings.Contains(out, secret) {
			t.Fatalf("payload leaked secret %q", secret)
		}
	}
}

func TestServerInfo_WithoutMetrics(t *testing.T) {
	tool := NewServerInfoTool(ServerInfoConfig{Config: config.Defaults(), ToolCount: 9})
	out, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatal(err)
	}
	if _, ok := decoded["metrics"]; ok {
		t.Fatal("metrics should be omitted when no collector is wired")
	}
}
