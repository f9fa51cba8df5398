package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/logging"
)

// NewSearchCmd constructs the `hiresync search` command, which runs one
// hybrid search and prints the fused results as JSON.
func NewSearchCmd() *cobra.Command {
	var org string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <candidates|jobs> <query...>",
		Short: "Run a hybrid search against the index",
		Long: `Run a hybrid (lexical + semantic) search and print the fused results as JSON.

Examples:
  hiresync search candidates golang kubernetes --org acme
  hiresync search jobs "backend engineer" --limit 5`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			query := strings.TrimSpace(strings.Join(args[1:], " "))
			if query == "" {
				return errors.New("search: query must not be empty")
			}

			a, err := newApp(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer a.Close()

			coll, err := a.resolver(args[0])
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			hits := a.search.Search(ctx, coll, query, limit, org)
			return printJSON(cmd.OutOrStdout(), hits)
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Restrict results to this organization")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")

	return cmd
}
