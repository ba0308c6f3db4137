package usecase

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

// Walker enumerates the paginated listing of the site.
type Walker struct {
	fetcher   ports.PageFetcher
	extractor ports.MarkupExtractor
	logger    *slog.Logger
}

// NewWalker builds a listing walker.
func NewWalker(fetcher ports.PageFetcher, extractor ports.MarkupExtractor, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{fetcher: fetcher, extractor: extractor, logger: logger.With("component", "walker")}
}

// PageURL maps a 1-based page number to its listing URL.
func (w *Walker) PageURL(n int) string {
	if n <= 1 {
		return w.extractor.Origin()
	}
	return fmt.Sprintf("%s/new/%d", w.extractor.Origin(), n)
}

// FetchPage downloads and extracts a single listing page.
func (w *Walker) FetchPage(ctx context.Context, n int) (domain.ListingPage, error) {
	if n < 1 {
		n = 1
	}
	page := domain.ListingPage{Number: n, URL: w.PageURL(n)}

	markup, err := w.fetcher.FetchPage(ctx, ports.FetchRequest{URL: page.URL})
	if err != nil {
		return page, fmt.Errorf("listing page %d: %w", n, err)
	}
	items, err := w.extractor.Listing(markup)
	if err != nil {
		return page, fmt.Errorf("%w: parse listing page %d: %w", domain.ErrFetch, n, err)
	}
	page.Items = items
	return page, nil
}

// Pages lazily yields pages 1..maxPages. A failed page is logged and yielded
// with Err set; the walk then moves on. Each call starts again from page 1.
func (w *Walker) Pages(ctx context.Context, maxPages int) iter.Seq2[int, domain.ListingPage] {
	return func(yield func(int, domain.ListingPage) bool) {
		for n := 1; n <= maxPages; n++ {
			if ctx.Err() != nil {
				return
			}
			page, err := w.FetchPage(ctx, n)
			if err != nil {
				w.logger.Warn("listing page failed", "page", n, "url", page.URL, "error", err)
				page.Items = nil
				page.Err = err
			}
			if !yield(n, page) {
				return
			}
		}
	}
}
