// Package cli implements the codex-nexus command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pysugar/codex-nexus/internal/config"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "codex-nexus",
	Short: "Local OpenAI-compatible proxy for the ChatGPT Codex backend",
	Long: `codex-nexus runs a local HTTP proxy that accepts OpenAI
chat-completions requests and forwards them to the ChatGPT Codex
responses API using OAuth credentials obtained via 'codex-nexus auth'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	// Running without a subcommand starts the server.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to codex-nexus.yaml")
}
