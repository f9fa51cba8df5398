package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/server"
	"github.com/54b3r/hiresync-go/internal/tracing"
)

// NewServeCmd constructs the `hiresync serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the hiresync HTTP API",
		Long: `Start the hiresync HTTP API.

The server exposes hybrid search and similarity over the index, record
writes that are mirrored into the index as they happen, resume extraction
and on-demand reindexing. Requests act for the organization named in the
X-Organization-ID header.

Resume extraction needs a chat model (MODEL_PROVIDER). When none can be
initialised the server still starts and the extraction route answers 503.

Examples:
  hiresync serve
  hiresync serve --port 9090
  INDEX_BACKEND=memory EMBEDDING_PROVIDER=none hiresync serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// The config file is loaded after flag defaults are set.
			if !cmd.Flags().Changed("host") {
				host = envOrDefault("HIRESYNC_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = envInt("HIRESYNC_PORT", port)
			}

			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			a, err := newApp(log, prometheus.DefaultRegisterer)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer a.Close()

			pipeline, err := a.newPipeline(ctx)
			if err != nil {
				log.Warn("resume extraction disabled", slog.Any("error", err))
				pipeline = nil
			}

			deps := server.Deps{
				Orgs:           a.orgs,
				Candidates:     a.candidates,
				Jobs:           a.jobs,
				CandidateIndex: a.candIndex,
				JobIndex:       a.jobIndex,
				Search:         a.search,
				Similarity:     a.similarity,
				Ingest:         pipeline,
			}
			srv, err := server.New(deps, &server.Config{
				Host:            host,
				Port:            port,
				Logger:          log,
				Pingers:         a.pingers,
				APIKey:          os.Getenv("HIRESYNC_API_KEY"),
				RateLimit:       float64(envInt("HIRESYNC_RATE_LIMIT", 0)),
				RateBurst:       envInt("HIRESYNC_RATE_BURST", 0),
				MetricsRegistry: prometheus.DefaultRegisterer,
				MetricsGatherer: prometheus.DefaultGatherer,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: HIRESYNC_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: HIRESYNC_PORT)")

	return cmd
}
