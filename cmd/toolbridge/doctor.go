package main

import (
	"fmt"
	"os"
	"path/filepath"

	"toolbridge/internal/audit"
	"toolbridge/internal/config"

	"github.com/spf13/cobra"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your toolbridge installation",
		Long: `Verifies that toolbridge's configuration, data directory, audit database,
and integration credentials are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("toolbridge doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file
			cfgPath := configPath
			if cfgPath == "" {
				cfgPath = config.DefaultConfigPath()
			}
			if _, err := os.Stat(cfgPath); err != nil {
				if configPath != "" {
					printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
					failed++
					fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", passed, warned, failed)
					return fmt.Errorf("%d check(s) failed", failed)
				}
				printWarn("Config file", fmt.Sprintf("not found at %s (defaults and environment apply)", cfgPath))
				warned++
			} else {
				printPass("Config file", cfgPath)
				passed++
			}

			// 2. Config loads and validates
			cfg, err := config.Resolve(configPath)
			if err != nil {
				printFail("Config validation", err.Error())
				failed++
				fmt.Printf("\nResults: %d passed, %d warnings, %d failed\n", passed, warned, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Data directory writable
			if err := checkDataDir(cfg.Files.DataDir); err != nil {
				printFail("Data directory", err.Error())
				failed++
			} else {
				printPass("Data directory", cfg.Files.DataDir)
				passed++
			}

			// 4. Audit database
			if cfg.Audit.Enabled {
				if total, err := checkAuditDB(cmd, cfg.Audit.DBPath); err != nil {
					printFail("Audit database", err.Error())
					failed++
				} else {
					printPass("Audit database", fmt.Sprintf("%s (%d records)", cfg.Audit.DBPath, total))
					passed++
				}
			} else {
				printWarn("Audit database", "disabled; invocations will not be recorded")
				warned++
			}

			// 5. Integration credentials
			if cfg.GitHub.Token.IsSet() {
				printPass("GitHub", "token configured")
				passed++
			} else {
				printWarn("GitHub", fmt.Sprintf("set %s to enable issue tools", config.EnvGitHubToken))
				warned++
			}

			switch {
			case cfg.Notion.Token.IsSet() && cfg.Notion.DatabaseID.IsSet():
				printPass("Notion", "token and database configured")
				passed++
			case cfg.Notion.Token.IsSet():
				printWarn("Notion", fmt.Sprintf("set %s to enable note tools", config.EnvNotionDB))
				warned++
			case cfg.Notion.DatabaseID.IsSet():
				printWarn("Notion", fmt.Sprintf("set %s to enable note tools", config.EnvNotionToken))
				warned++
			default:
				printWarn("Notion", fmt.Sprintf("set %s and %s to enable note tools", config.EnvNotionToken, config.EnvNotionDB))
				warned++
			}

			if cfg.Weather.APIKey.IsSet() {
				printPass("Weather", "API key configured")
				passed++
			} else {
				printWarn("Weather", fmt.Sprintf("set %s to enable get_weather", config.EnvWeatherKey))
				warned++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running toolbridge.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\ntoolbridge will run; tools without credentials report missing_credential.\n")
			} else {
				fmt.Printf("\nAll checks passed! toolbridge is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDataDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create: %w", err)
	}
	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	os.Remove(probe)
	return nil
}

func checkAuditDB(cmd *cobra.Command, dbPath string) (int64, error) {
	store, err := audit.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	counts, err := store.CountByOutcome(cmd.Context())
	if err != nil {
		return 0, fmt.Errorf("not readable: %w", err)
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return total, nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
