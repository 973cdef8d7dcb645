package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"toolbridge/internal/config"

	"github.com/spf13/cobra"
)

// integrationMeta describes one credential-backed integration for the wizard.
// Secrets are never written to the config file; the wizard only checks the
// environment and tells the user what to export.
type integrationMeta struct {
	Label  string
	EnvVar string
	Tools  string
}

var knownIntegrations = []integrationMeta{
	{Label: "GitHub", EnvVar: config.EnvGitHubToken, Tools: "get_github_issues, create_github_issue"},
	{Label: "Notion token", EnvVar: config.EnvNotionToken, Tools: "get_notion_notes, create_notion_note"},
	{Label: "Notion database", EnvVar: config.EnvNotionDB, Tools: "get_notion_notes, create_notion_note"},
	{Label: "OpenWeather", EnvVar: config.EnvWeatherKey, Tools: "get_weather"},
}

func wizardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive setup: data directory → audit log → credentials → save config",
		Long: `Guides you through the data directory, audit log, log level, and integration
credentials, then writes the config file. Credentials stay in the environment;
the wizard only reports which ones are missing.`,
		RunE: runWizard,
	}
}

func runWizard(cmd *cobra.Command, args []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	cfg, err := config.Resolve(configPath)
	if err != nil {
		cfg = config.Defaults()
	}

	reader := bufio.NewReader(os.Stdin)
	prompt := func(def string) (string, error) {
		if def != "" {
			fmt.Fprintf(os.Stdout, " [%s]: ", def)
		} else {
			fmt.Fprint(os.Stdout, ": ")
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		s := strings.TrimSpace(line)
		if s == "" && def != "" {
			return def, nil
		}
		return s, nil
	}

	// Step 1: Data directory
	fmt.Println("\n--- Step 1: Data directory ---")
	fmt.Fprint(os.Stdout, "Directory for files managed by save_file/read_file/list_files")
	dataDir, err := prompt(cfg.Files.DataDir)
	if err != nil {
		return err
	}
	cfg.Files.DataDir = config.ExpandPath(dataDir)
	if err := os.MkdirAll(cfg.Files.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	fmt.Fprintf(os.Stdout, "  Using data directory: %s\n", cfg.Files.DataDir)

	// Step 2: Audit log
	fmt.Println("\n--- Step 2: Audit log ---")
	def := "y"
	if !cfg.Audit.Enabled {
		def = "n"
	}
	fmt.Fprint(os.Stdout, "Record tool invocations in a local SQLite database? (y/n)")
	answer, err := prompt(def)
	if err != nil {
		return err
	}
	cfg.Audit.Enabled = strings.HasPrefix(strings.ToLower(answer), "y")
	if cfg.Audit.Enabled {
		fmt.Fprint(os.Stdout, "Audit database path")
		dbPath, err := prompt(cfg.Audit.DBPath)
		if err != nil {
			return err
		}
		cfg.Audit.DBPath = config.ExpandPath(dbPath)
		fmt.Fprintf(os.Stdout, "  Using audit database: %s\n", cfg.Audit.DBPath)
	} else {
		fmt.Fprintln(os.Stdout, "  Audit log disabled")
	}

	// Step 3: Log level
	fmt.Println("\n--- Step 3: Log level ---")
	fmt.Fprint(os.Stdout, "Log level (debug, info, warn, error)")
	level, err := prompt(cfg.Server.LogLevel)
	if err != nil {
		return err
	}
	switch level {
	case "debug", "info", "warn", "error":
		cfg.Server.LogLevel = level
	default:
		fmt.Fprintf(os.Stdout, "  Unknown level %q, keeping %q\n", level, cfg.Server.LogLevel)
	}

	// Step 4: Credentials (environment only)
	fmt.Println("\n--- Step 4: Integration credentials ---")
	fmt.Println("Credentials are read from the environment and never saved to the config file.")
	missing := []string{}
	for _, integ := range knownIntegrations {
		if os.Getenv(integ.EnvVar) != "" {
			fmt.Fprintf(os.Stdout, "  [set]     %-16s %s\n", integ.Label, integ.EnvVar)
		} else {
			fmt.Fprintf(os.Stdout, "  [missing] %-16s export %s to enable %s\n", integ.Label, integ.EnvVar, integ.Tools)
			missing = append(missing, integ.EnvVar)
		}
	}

	// Save
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nConfig saved to %s\n", cfgPath)
	if len(missing) > 0 {
		fmt.Printf("Next: export %s, then run 'toolbridge serve'.\n", strings.Join(missing, ", "))
	} else {
		fmt.Println("Next: run 'toolbridge serve' (or 'toolbridge doctor' to re-check).")
	}
	return nil
}
