package config

// Defaults returns the baseline configuration before file and env overrides.
// Credentials default to unset: the matching tools report missing_credential
// until one is provided.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "toolbridge",
			Version:  "1.0.0",
			LogLevel: "info",
		},
		Files: FilesConfig{
			DataDir: "~/.toolbridge/data",
		},
		GitHub: GitHubConfig{
			APIBase: "https://api.github.com",
		},
		Notion: NotionConfig{
			APIBase: "https://api.notion.com",
		},
		Weather: WeatherConfig{
			APIBase: "https://api.openweathermap.org",
		},
		Audit: AuditConfig{
			Enabled: true,
			DBPath:  "~/.toolbridge/audit.db",
		},
		Tools: ToolsConfig{
			TimeoutSeconds: 30,
		},
	}
}
