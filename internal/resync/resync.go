// Package resync rebuilds the index from the primary store. It pages through
// every record of one entity type (optionally one organization) and hands
// each page to the index syncer's bounded worker pool.
package resync

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/54b3r/hiresync-go/internal/index"
	"github.com/54b3r/hiresync-go/internal/logging"
	"github.com/54b3r/hiresync-go/internal/store"
)

// DefaultPageSize is how many records are read from the store per batch.
const DefaultPageSize = 200

// Source lists records page by page. *store.Repository satisfies it.
type Source[E any] interface {
	List(ctx context.Context, opts store.ListOptions) ([]E, error)
}

// Sink upserts a batch into the index. *index.Syncer satisfies it.
type Sink[E any] interface {
	UpsertMany(ctx context.Context, entities []E) index.Report
}

// Options tunes a Run.
type Options struct {
	// Org restricts the resync to one organization. Empty means all.
	Org string

	// PageSize is the store batch size. Zero means DefaultPageSize.
	PageSize int

	// Logger receives progress. If nil, slog.Default is used.
	Logger *slog.Logger
}

// Run re-upserts every record src yields into dst. Index failures are
// collected in the returned report; only a store read error aborts the run,
// in which case the report covers the pages processed so far.
func Run[E any](ctx context.Context, src Source[E], dst Sink[E], opts Options) (index.Report, error) {
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	log := logging.Component(opts.Logger, "resync").With(slog.String("org", opts.Org))
	start := time.Now()

	var total index.Report
	for offset := 0; ; offset += size {
		if err := ctx.Err(); err != nil {
			return finish(total), fmt.Errorf("resync: %w", err)
		}
		page, err := src.List(ctx, store.ListOptions{Org: opts.Org, Limit: size, Offset: offset})
		if err != nil {
			return finish(total), fmt.Errorf("resync: list page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}

		r := dst.UpsertMany(ctx, page)
		total.Total += r.Total
		total.Indexed += r.Indexed
		total.FailedIDs = append(total.FailedIDs, r.FailedIDs...)
		log.Debug("resync page done", slog.Int("offset", offset), slog.Int("records", len(page)))

		if len(page) < size {
			break
		}
	}

	total = finish(total)
	log.Info("resync complete",
		slog.Int("total", total.Total),
		slog.Int("indexed", total.Indexed),
		slog.Int("failed", total.Failed()),
		slog.Duration("duration", time.Since(start)),
	)
	return total, nil
}

func finish(r index.Report) index.Report {
	slices.Sort(r.FailedIDs)
	return r
}
