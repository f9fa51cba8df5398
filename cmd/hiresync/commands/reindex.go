package commands

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/resync"
)

// NewReindexCmd constructs the `hiresync reindex` command, which rebuilds the
// index of one entity type from the primary store.
func NewReindexCmd() *cobra.Command {
	var org string
	var pageSize int

	cmd := &cobra.Command{
		Use:   "reindex <candidates|jobs>",
		Short: "Re-embed and upsert every record of an entity type",
		Long: `Read every record of the given entity type from the store, page by page,
and upsert it into the index. Use after changing the embedding model or
when the index was lost. Records that fail are listed and make the
command exit non-zero; re-running is safe.

Examples:
  hiresync reindex candidates
  hiresync reindex jobs --org acme`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			a, err := newApp(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			defer a.Close()

			if _, err := a.resolver(args[0]); err != nil {
				return fmt.Errorf("reindex: %w", err)
			}

			opts := resync.Options{Org: org, PageSize: pageSize, Logger: log}
			var report index.Report
			switch args[0] {
			case model.EntityCandidates:
				report, err = resync.Run[*model.Candidate](ctx, a.candidates, a.candIndex, opts)
			case model.EntityJobs:
				report, err = resync.Run[*model.JobListing](ctx, a.jobs, a.jobIndex, opts)
			}
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d indexed\n", args[0], report.Indexed, report.Total)
			if report.Failed() > 0 {
				for _, id := range report.FailedIDs {
					fmt.Fprintf(cmd.OutOrStdout(), "  failed: %s\n", id)
				}
				log.Warn("reindex incomplete", slog.Int("failed", report.Failed()))
				return fmt.Errorf("reindex: %d of %d records failed", report.Failed(), report.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Only reindex records of this organization")
	cmd.Flags().IntVar(&pageSize, "page-size", resync.DefaultPageSize, "Records read from the store per page")

	return cmd
}
