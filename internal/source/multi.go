package source

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/leadsync/internal/model"
)

// Named pairs a source with the name used in logs and errors.
type Named struct {
	Name   string
	Source model.PostingSource
}

// MultiSource fetches several sources concurrently and concatenates their
// batches in configured order. Any failing source fails the whole batch.
type MultiSource struct {
	sources []Named
	logger  *slog.Logger
}

var _ model.PostingSource = (*MultiSource)(nil)

// NewMultiSource combines sources.
func NewMultiSource(sources []Named, logger *slog.Logger) *MultiSource {
	return &MultiSource{sources: sources, logger: logger}
}

// FetchPostings fetches all sources. The first error cancels the others.
func (m *MultiSource) FetchPostings(ctx context.Context) ([]model.RawPosting, error) {
	batches := make([][]model.RawPosting, len(m.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, ns := range m.sources {
		g.Go(func() error {
			postings, err := ns.Source.FetchPostings(gctx)
			if err != nil {
				return fmt.Errorf("source %s: %w", ns.Name, err)
			}
			batches[i] = postings
			m.logger.Debug("source fetched", "source", ns.Name, "count", len(postings))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, b := range batches {
		total += len(b)
	}
	out := make([]model.RawPosting, 0, total)
	for _, b := range batches {
		out = append(out, b...)
	}
	return out, nil
}
