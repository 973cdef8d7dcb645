package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for toolbridge.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Files   FilesConfig   `json:"files" yaml:"files"`
	GitHub  GitHubConfig  `json:"github" yaml:"github"`
	Notion  NotionConfig  `json:"notion" yaml:"notion"`
	Weather WeatherConfig `json:"weather" yaml:"weather"`
	Audit   AuditConfig   `json:"audit" yaml:"audit"`
	Tools   ToolsConfig   `json:"tools" yaml:"tools"`
}

type ServerConfig struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	LogLevel string `json:"logLevel" yaml:"logLevel"` // debug | info | warn | error
}

type FilesConfig struct {
	DataDir string `json:"dataDir" yaml:"dataDir"`
}

type GitHubConfig struct {
	Token   Credential `json:"token" yaml:"token"`
	APIBase string     `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
}

type NotionConfig struct {
	Token      Credential `json:"token" yaml:"token"`
	DatabaseID Credential `json:"databaseId" yaml:"databaseId"`
	APIBase    string     `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
}

type WeatherConfig struct {
	APIKey  Credential `json:"apiKey" yaml:"apiKey"`
	APIBase string     `json:"apiBase,omitempty" yaml:"apiBase,omitempty"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"dbPath" yaml:"dbPath"`
}

type ToolsConfig struct {
	TimeoutSeconds int `json:"timeoutSeconds" yaml:"timeoutSeconds"`
}

// redactedMarker replaces credential values in marshaled output. Unmarshal
// maps it back to unset so a saved config file stays loadable.
const redactedMarker = "[redacted]"

// Credential is an optional secret with explicit presence tracking. The zero
// value is unset; an empty string never counts as a configured credential.
// Marshaling redacts the underlying value so config dumps stay safe to share.
type Credential struct {
	value string
	set   bool
}

// NewCredential wraps v. An empty v yields an unset credential.
func NewCredential(v string) Credential {
	if v == "" {
		return Credential{}
	}
	return Credential{value: v, set: true}
}

// Value returns the secret and whether it is configured.
func (c Credential) Value() (string, bool) { return c.value, c.set }

// IsSet reports whether the credential is configured.
func (c Credential) IsSet() bool { return c.set }

func (c Credential) String() string {
	if !c.set {
		return ""
	}
	return redactedMarker
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == redactedMarker {
		*c = Credential{}
		return nil
	}
	*c = NewCredential(s)
	return nil
}

func (c Credential) MarshalYAML() (any, error) {
	return c.String(), nil
}

func (c *Credential) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == redactedMarker {
		*c = Credential{}
		return nil
	}
	*c = NewCredential(s)
	return nil
}

// DefaultConfigDir returns the default config directory (~/.toolbridge).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".toolbridge"
	}
	return filepath.Join(home, ".toolbridge")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Resolve builds the effective configuration: defaults, then the optional
// config file, then process environment overrides. An empty path means the
// default location, which may be absent; an explicit path must exist.
func Resolve(path string) (*Config, error) {
	cfg := Defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := parse(path, data, cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err) && !explicit:
		// No config file is fine: env vars alone can configure everything.
	default:
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	applyEnv(cfg)

	cfg.Files.DataDir = ExpandPath(cfg.Files.DataDir)
	cfg.Audit.DBPath = ExpandPath(cfg.Audit.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// parse decodes data into cfg, choosing the codec by file extension.
// ${VAR} and ${VAR:-default} references are expanded first.
func parse(path string, data []byte, cfg *Config) error {
	expanded := []byte(ExpandEnvVars(string(data)))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(expanded, cfg); err != nil {
			return fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}
	return nil
}

// Environment keys recognized by applyEnv. Env always wins over file values.
const (
	EnvServerName    = "SERVER_NAME"
	EnvServerVersion = "SERVER_VERSION"
	EnvLogLevel      = "LOG_LEVEL"
	EnvDataDir       = "TOOLBRIDGE_DATA_DIR"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvNotionToken   = "NOTION_API_TOKEN"
	EnvNotionDB      = "NOTION_DATABASE_ID"
	EnvWeatherKey    = "OPENWEATHER_API_KEY"
)

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvServerName); v != "" {
		cfg.Server.Name = v
	}
	if v := os.Getenv(EnvServerVersion); v != "" {
		cfg.Server.Version = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Files.DataDir = v
	}
	if v := os.Getenv(EnvGitHubToken); v != "" {
		cfg.GitHub.Token = NewCredential(v)
	}
	if v := os.Getenv(EnvNotionToken); v != "" {
		cfg.Notion.Token = NewCredential(v)
	}
	if v := os.Getenv(EnvNotionDB); v != "" {
		cfg.Notion.DatabaseID = NewCredential(v)
	}
	if v := os.Getenv(EnvWeatherKey); v != "" {
		cfg.Weather.APIKey = NewCredential(v)
	}
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if cfg.Server.Version == "" {
		errs = append(errs, "server.version must not be empty")
	}
	switch cfg.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "server.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Files.DataDir == "" {
		errs = append(errs, "files.dataDir must not be empty")
	}
	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		errs = append(errs, "audit.dbPath must not be empty when audit is enabled")
	}
	if cfg.Tools.TimeoutSeconds < 1 || cfg.Tools.TimeoutSeconds > 600 {
		errs = append(errs, "tools.timeoutSeconds must be between 1 and 600, got "+strconv.Itoa(cfg.Tools.TimeoutSeconds))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
