// Package commands defines all Cobra CLI commands for the hiresync binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/audit"
	"github.com/54b3r/hiresync-go/internal/config"
	"github.com/54b3r/hiresync-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hiresync",
		Short: "hiresync keeps hiring records searchable",
		Long: `hiresync mirrors candidates and job listings from the primary store into a
vector index and serves hybrid (lexical + semantic) search and similarity
scoring over them.

Configuration comes from environment variables, optionally layered over a
YAML file (--config, HIRESYNC_CONFIG, ~/.hiresync/config.yaml, ./hiresync.yaml).
Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			audit.LogCommandStart(cmd.Context(), log, cmd.CommandPath(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.hiresync/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewReindexCmd(),
		NewSearchCmd(),
		NewSimilarCmd(),
		NewExtractCmd(),
		NewOrgCmd(),
		NewCheckCmd(),
		NewVersionCmd(),
	)

	return root
}
