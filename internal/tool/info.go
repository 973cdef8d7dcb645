package tool

import (
	"context"
	"encoding/json"
	"time"

	"toolbridge/internal/config"
	"toolbridge/internal/domain"
	"toolbridge/internal/metrics"
)

// ServerInfoConfig wires the server info tool.
type ServerInfoConfig struct {
	Config    *config.Config
	Metrics   *metrics.Collector
	ToolCount int
}

// serverInfo is the diagnostic payload. Credentials appear only as
// configured/not-configured booleans, never as values.
type serverInfo struct {
	ServerName    string            `json:"server_name"`
	ServerVersion string            `json:"server_version"`
	Timestamp     string            `json:"timestamp"`
	ToolCount     int               `json:"tool_count"`
	Integrations  integrationStatus `json:"integrations"`
	Metrics       *metrics.Snapshot `json:"metrics,omitempty"`
}

type integrationStatus struct {
	GitHubConfigured  bool `json:"github_configured"`
	NotionConfigured  bool `json:"notion_configured"`
	WeatherConfigured bool `json:"weather_configured"`
	AuditEnabled      bool `json:"audit_enabled"`
}

// --- ServerInfoTool ---

// ServerInfoTool reports server identity, integration status, and invocation
// counters.
type ServerInfoTool struct {
	cfg       *config.Config
	metrics   *metrics.Collector
	toolCount int
}

func NewServerInfoTool(cfg ServerInfoConfig) *ServerInfoTool {
	return &ServerInfoTool{cfg: cfg.Config, metrics: cfg.Metrics, toolCount: cfg.ToolCount}
}

func (t *ServerInfoTool) Descriptor() domain.ToolDescriptor {
	return domain.ToolDescriptor{
		Name:        "get_server_info",
		Description: "Get server identity, integration status, and invocation counters.",
		Effect:      domain.EffectNone,
		Schema:      domain.InputSchema{Properties: map[string]domain.Property{}},
	}
}

func (t *ServerInfoTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	info := serverInfo{
		ServerName:    t.cfg.Server.Name,
		ServerVersion: t.cfg.Server.Version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		ToolCount:     t.toolCount,
		Integrations: integrationStatus{
			GitHubConfigured:  t.cfg.GitHub.Token.IsSet(),
			NotionConfigured:  t.cfg.Notion.Token.IsSet() && t.cfg.Notion.DatabaseID.IsSet(),
			WeatherConfigured: t.cfg.Weather.APIKey.IsSet(),
			AuditEnabled:      t.cfg.Audit.Enabled,
		},
	}
	if t.metrics != nil {
		snap := t.metrics.Snapshot()
		info.Metrics = &snap
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", domain.Wrapf(domain.ErrIO, err, "encode server info")
	}
	return string(data), nil
}

var _ domain.Tool = (*ServerInfoTool)(nil)
