package main

import (
	"github.com/spf13/cobra"

	"github.com/jackzampolin/songshelf/internal/api"
	"github.com/jackzampolin/songshelf/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "songshelf",
	Short: "Lineage monitor for the song extraction pipeline",
	Long: `Songshelf watches the lineage of books processed by the song extraction
pipeline and re-runs books that came out incomplete or inconsistent.

It provides:
  - Completeness and consistency checks over the lineage batch
  - Reprocessing through the pipeline orchestrator
  - Status polling of active jobs until they complete or fail
  - Completion notifications and a UI event feed`,
	Version:      version.GitRelease,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.songshelf/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "songshelf home directory (default: ~/.songshelf)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "", "output format: yaml, json or table (default: table on a terminal)",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
