package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/similarity"
)

// NewSimilarCmd constructs the `hiresync similar` command, which scores one
// indexed entity against others by cosine similarity.
func NewSimilarCmd() *cobra.Command {
	var org, target string
	var ids []string
	var limit int

	cmd := &cobra.Command{
		Use:   "similar <candidates|jobs> <source-id>",
		Short: "Score an entity against others by vector similarity",
		Long: `Compare the stored vector of one entity with other entities.

With --ids, exactly those targets are scored, most similar first. Without,
the nearest entities of the target type are returned. The target type
defaults to the source type.

Examples:
  hiresync similar jobs j-123 --target candidates --limit 20
  hiresync similar candidates c-1 --ids c-2,c-3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, err := newApp(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("similar: %w", err)
			}
			defer a.Close()

			source, err := a.resolver(args[0])
			if err != nil {
				return fmt.Errorf("similar: %w", err)
			}
			dst := source
			if target != "" {
				if dst, err = a.resolver(target); err != nil {
					return fmt.Errorf("similar: target: %w", err)
				}
			}

			req := similarity.Request{
				Source:    source,
				Target:    dst,
				SourceID:  args[1],
				TargetIDs: ids,
				Tenant:    org,
			}
			var matches []similarity.Match
			if len(ids) > 0 {
				matches = a.similarity.CompareOne(ctx, req)
				if limit > 0 && len(matches) > limit {
					matches = matches[:limit]
				}
			} else {
				matches = a.similarity.Nearest(ctx, req, limit)
			}
			return printJSON(cmd.OutOrStdout(), matches)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "Entity type of the targets (default: the source type)")
	cmd.Flags().StringSliceVar(&ids, "ids", nil, "Comma-separated target ids to score")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVar(&org, "org", "", "Restrict source and targets to this organization")

	return cmd
}
