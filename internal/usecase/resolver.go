package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

// AlreadyKnownMessage accompanies a result whose record was seen before.
const AlreadyKnownMessage = "Video already exists in store."

// DetailResolver fetches one detail page, checks its embed and gates it on
// the identity store before persisting.
type DetailResolver struct {
	fetcher   ports.PageFetcher
	prober    ports.Prober
	extractor ports.MarkupExtractor
	store     ports.IdentityStore
	logger    *slog.Logger
}

// NewDetailResolver wires the resolver.
func NewDetailResolver(
	fetcher ports.PageFetcher,
	prober ports.Prober,
	extractor ports.MarkupExtractor,
	store ports.IdentityStore,
	logger *slog.Logger,
) *DetailResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetailResolver{
		fetcher:   fetcher,
		prober:    prober,
		extractor: extractor,
		store:     store,
		logger:    logger.With("component", "detail"),
	}
}

// Resolve runs the full detail flow for detailURL. Only same-origin URLs are
// accepted.
func (r *DetailResolver) Resolve(ctx context.Context, detailURL string) (domain.DetailResult, error) {
	if !r.extractor.SameOrigin(detailURL) {
		return domain.DetailResult{}, fmt.Errorf("%w: %q is not a page of %s", domain.ErrValidation, detailURL, r.extractor.Origin())
	}

	markup, err := r.fetcher.FetchPage(ctx, ports.FetchRequest{URL: detailURL})
	if err != nil {
		return domain.DetailResult{}, err
	}

	record, err := r.extractor.Detail(detailURL, markup)
	if err != nil {
		return domain.DetailResult{}, err
	}

	probe := ports.FetchRequest{URL: record.EmbedReference, Referer: detailURL}
	if err := r.prober.Probe(ctx, probe); err != nil {
		return domain.DetailResult{}, fmt.Errorf("%w: %s: %w", domain.ErrEmbedUnreachable, record.EmbedReference, err)
	}

	known, err := r.known(ctx, record)
	if err != nil {
		return domain.DetailResult{}, err
	}
	if known {
		return alreadyKnown(record), nil
	}

	if _, err := r.store.Insert(ctx, record); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return alreadyKnown(record), nil
		}
		r.logger.Error("insert failed", "title", record.Title, "url", detailURL, "error", err)
		return domain.DetailResult{Record: record}, nil
	}
	return domain.DetailResult{Record: record, Saved: true}, nil
}

func (r *DetailResolver) known(ctx context.Context, record domain.DetailRecord) (bool, error) {
	byTitle, err := r.store.ExistsByTitle(ctx, record.Title)
	if err != nil {
		return false, err
	}
	byEmbed, err := r.store.ExistsByEmbedReference(ctx, record.EmbedReference)
	if err != nil {
		return false, err
	}
	return byTitle || byEmbed, nil
}

func alreadyKnown(record domain.DetailRecord) domain.DetailResult {
	return domain.DetailResult{Record: record, AlreadyKnown: true, Message: AlreadyKnownMessage}
}
