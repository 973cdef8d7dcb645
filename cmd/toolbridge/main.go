package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"toolbridge/internal/audit"
	"toolbridge/internal/config"
	"toolbridge/internal/domain"
	"toolbridge/internal/metrics"
	"toolbridge/internal/server"
	"toolbridge/internal/tool"

	"github.com/spf13/cobra"
)

var (
	version    = "1.0.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = setupLogger("info")

	root := &cobra.Command{
		Use:   "toolbridge",
		Short: "toolbridge: MCP server for Notion, GitHub, weather, and local files",
		Long: `toolbridge exposes a small, fixed set of tools to MCP clients:
Notion notes, GitHub issues, current weather, and files under a managed
data directory.`,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ~/.toolbridge/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(wizardCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(callCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogger builds the process logger. Output goes to stderr; on the stdio
// transport stdout carries the protocol stream.
func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveCmdConfig loads the effective config and re-levels the logger.
func resolveCmdConfig() (*config.Config, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger = setupLogger(cfg.Server.LogLevel)
	return cfg, nil
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Files.DataDir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "data_dir", cfg.Files.DataDir)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server (stdio by default)",
		Long:  "Serves MCP on stdin/stdout, or over streamable HTTP when --http is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			collector := metrics.NewCollector()

			var sink domain.AuditSink
			if cfg.Audit.Enabled {
				store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
				if err != nil {
					return fmt.Errorf("audit store: %w", err)
				}
				defer store.Close()
				sink = store
			}

			reg, err := buildRegistry(cfg, sink, collector)
			if err != nil {
				return err
			}

			srv := server.New(server.Config{
				Registry: reg,
				Name:     cfg.Server.Name,
				Version:  cfg.Server.Version,
				Logger:   logger,
			})

			if httpAddr != "" {
				err = srv.ServeHTTP(ctx, httpAddr)
			} else {
				err = srv.ServeStdio(ctx)
			}
			if err != nil {
				return err
			}

			snap := collector.Snapshot()
			logger.Info("server stopped", "invocations", snap.TotalInvocations, "failures", snap.TotalFailures)
			return nil
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve over HTTP on this address (e.g. :8080) instead of stdio")
	return cmd
}

// buildRegistry creates every tool and registers it. The info tool goes last
// so its tool count covers the whole set.
func buildRegistry(cfg *config.Config, sink domain.AuditSink, collector *metrics.Collector) (*tool.Registry, error) {
	root, err := tool.NewRoot(cfg.Files.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory: %w", err)
	}

	notion := tool.NotionConfig{Token: cfg.Notion.Token, DatabaseID: cfg.Notion.DatabaseID, APIBase: cfg.Notion.APIBase}
	github := tool.GitHubConfig{Token: cfg.GitHub.Token, APIBase: cfg.GitHub.APIBase}
	weather := tool.WeatherConfig{APIKey: cfg.Weather.APIKey, APIBase: cfg.Weather.APIBase}

	tools := []domain.Tool{
		tool.NewNotionNotesTool(notion),
		tool.NewNotionCreateNoteTool(notion),
		tool.NewGitHubIssuesTool(github),
		tool.NewGitHubCreateIssueTool(github),
		tool.NewWeatherTool(weather),
		tool.NewSaveFileTool(root),
		tool.NewReadFileTool(root),
		tool.NewListFilesTool(root),
	}
	tools = append(tools, tool.NewServerInfoTool(tool.ServerInfoConfig{
		Config:    cfg,
		Metrics:   collector,
		ToolCount: len(tools) + 1,
	}))

	return tool.NewRegistry(tool.RegistryConfig{
		Logger:  logger,
		Timeout: time.Duration(cfg.Tools.TimeoutSeconds) * time.Second,
		Audit:   sink,
		Metrics: collector,
	}, tools...)
}

func callCmd() *cobra.Command {
	var argPairs []string
	var jsonArgs string
	cmd := &cobra.Command{
		Use:   "call [tool]",
		Short: "Invoke a single tool and print its result",
		Long: `Invokes one tool outside any MCP session and prints the payload.
Arguments are given as repeated --arg key=value pairs (values are parsed
as JSON literals when possible) or as one --json object.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}

			callArgs, err := parseCallArgs(argPairs, jsonArgs)
			if err != nil {
				return err
			}

			var sink domain.AuditSink
			if cfg.Audit.Enabled {
				store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
				if err != nil {
					return fmt.Errorf("audit store: %w", err)
				}
				defer store.Close()
				sink = store
			}

			reg, err := buildRegistry(cfg, sink, nil)
			if err != nil {
				return err
			}

			payload, err := reg.Dispatch(cmd.Context(), domain.Request{Name: args[0], Arguments: callArgs})
			if err != nil {
				return err
			}
			fmt.Println(payload)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&argPairs, "arg", nil, "tool argument as key=value (repeatable)")
	cmd.Flags().StringVar(&jsonArgs, "json", "", "tool arguments as a JSON object (overrides --arg)")
	return cmd
}

// parseCallArgs turns CLI flags into a tool argument map. Each --arg value is
// tried as a JSON literal first so numbers and booleans keep their type.
func parseCallArgs(pairs []string, jsonArgs string) (map[string]any, error) {
	if jsonArgs != "" {
		out := map[string]any{}
		if err := json.Unmarshal([]byte(jsonArgs), &out); err != nil {
			return nil, fmt.Errorf("parse --json: %w", err)
		}
		return out, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, expected key=value", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err == nil {
			out[key] = parsed
		} else {
			out[key] = value
		}
	}
	return out, nil
}

func toolsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}
			reg, err := buildRegistry(cfg, nil, nil)
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(toolListing(reg.Descriptors()), "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			for _, desc := range reg.Descriptors() {
				fmt.Printf("%-22s %s\n", desc.Name, desc.Description)
				if len(desc.Schema.Required) > 0 {
					fmt.Printf("%-22s required: %s\n", "", strings.Join(desc.Schema.Required, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print tool declarations as JSON")
	return cmd
}

// toolListing renders descriptors with their full input schemas, the same
// shape MCP clients see in tools/list.
func toolListing(descs []domain.ToolDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(descs))
	for _, desc := range descs {
		out = append(out, map[string]any{
			"name":         desc.Name,
			"description":  desc.Description,
			"input_schema": desc.Schema.JSONSchema(),
		})
	}
	return out
}

func historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent tool invocations from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}
			if !cfg.Audit.Enabled {
				return fmt.Errorf("audit log is disabled in config")
			}

			store, err := audit.NewSQLiteStore(cfg.Audit.DBPath, logger)
			if err != nil {
				return fmt.Errorf("audit store: %w", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no recorded invocations")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-22s %-18s %6dms",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Tool, e.Outcome, e.DurationMS)
				if e.Message != "" {
					line += "  " + e.Message
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of entries to show")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long:  "Inspect the effective configuration. Credential values are always redacted.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. server.logLevel)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCmdConfig()
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(cfg, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				fmt.Println(configPath)
				return
			}
			fmt.Println(config.DefaultConfigPath())
		},
	})

	return cmd
}
