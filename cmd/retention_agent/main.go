// Package main provides the retention_agent CLI: analyze a video against its audience-retention
// chart, run individual stages, follow a run's progress, or serve the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/retention-insights/internal/logging"
)

var (
	configPath  string
	verbose     bool
	apiKey      string
	databaseURL string
	sqlitePath  string
)

var rootCmd = &cobra.Command{
	Use:   "retention_agent",
	Short: "Explain audience-retention dropoffs from a video's content",
	Long: `retention_agent digitizes a video's audience-retention chart, segments the video's audio,
on-screen text and visuals into content blocks, and reports how much of the audience each block lost.

Configuration can be loaded from a JSON or YAML file using --config. Command-line flags override config file values.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logging.Init(verbose)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a config file (.json, .yaml or .yml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
	flags.StringVar(&apiKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	flags.StringVar(&databaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	flags.StringVar(&sqlitePath, "sqlite", "", "SQLite database file (mutually exclusive with --db-url)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
