package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"linkscraper/pkg/config"
	"linkscraper/pkg/logger"
)

var (
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "linkscraper",
	Short: "A LinkedIn feed scraper with cookie sessions and proxy-verified navigation",
	Long: `linkscraper collects recent posts from configured LinkedIn company
pages and profiles, deduplicates them against the record store and
persists only what is new.

Features:
  - Cookie-based session reuse with credential and manual login fallback
  - Secure cookie storage using the system keychain or an encrypted file
  - Proxy egress verification before any page is touched
  - Retrying navigation with backoff and rate limiting
  - Airtable or local SQLite persistence
  - Cron scheduling with overlap protection`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.linkscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`linkscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return initLogging(cfg)
}

// loadConfigLenient skips run validation for maintenance commands, so
// cookie import and status work before the scraper is fully configured.
func loadConfigLenient() (*config.Config, error) {
	_ = godotenv.Load(".env")
	cfg := config.DefaultConfig()
	if err := cfg.LoadFromFile(configFile); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	return initLogging(cfg)
}

func initLogging(cfg *config.Config) (*config.Config, error) {
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
