package commands

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/model"
	"github.com/54b3r/hiresync-go/internal/tracing"
)

// NewExtractCmd constructs the `hiresync extract` command, which creates a
// candidate from a resume file or URL.
func NewExtractCmd() *cobra.Command {
	var org string

	cmd := &cobra.Command{
		Use:   "extract <file-or-url|->",
		Short: "Create a candidate from a plain-text resume",
		Long: `Read a plain-text resume (.txt or .md) from a local path or an http(s) URL,
extract the candidate fields with the configured chat model and create the
candidate. The new candidate is indexed like any other write and printed
as JSON. Use "-" to read the resume text from stdin.

Examples:
  hiresync extract ./resumes/ada.md --org acme
  hiresync extract https://example.com/cv.txt --org acme
  pdftotext cv.pdf - | hiresync extract - --org acme`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if org == "" {
				return errors.New("extract: --org is required")
			}

			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			a, err := newApp(log, prometheus.NewRegistry())
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			defer a.Close()

			pipeline, err := a.newPipeline(ctx)
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}

			var c *model.Candidate
			if args[0] == "-" {
				c, err = pipeline.IngestUpload(ctx, org, "stdin.txt", cmd.InOrStdin())
			} else {
				c, err = pipeline.IngestSource(ctx, org, args[0])
			}
			if err != nil {
				return fmt.Errorf("extract: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), c)
		},
	}

	cmd.Flags().StringVar(&org, "org", "", "Organization the candidate belongs to (required)")

	return cmd
}
