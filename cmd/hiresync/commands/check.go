package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/logging"
)

// NewCheckCmd constructs the `hiresync check` command, which probes every
// external dependency the way GET /api/ready does and reports each result.
func NewCheckCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the store, index and embedding backend",
		Long: `Probe every dependency hiresync needs and print one line per dependency.
Exits non-zero when any probe fails. Useful before a first reindex, or to
diagnose a server whose readiness check fails.

Examples:
  hiresync check
  QDRANT_HOST=qdrant.internal hiresync check --timeout 10s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()

			a, err := newApp(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("check: %w", err)
			}
			defer a.Close()

			failed := 0
			for _, p := range a.pingers {
				probeCtx, cancel := context.WithTimeout(ctx, timeout)
				err := p.Ping(probeCtx)
				cancel()
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %s: %v\n", p.Name(), err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok    %s\n", p.Name())
			}
			if failed > 0 {
				return fmt.Errorf("check: %d of %d dependencies unreachable", failed, len(a.pingers))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Timeout for each probe")

	return cmd
}
