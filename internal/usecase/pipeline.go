package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/metrics"
	"github.com/kakmul/ufcserver/internal/ports"
)

const (
	// DefaultMaxPages bounds a run when no page count is given.
	DefaultMaxPages  = 300
	DefaultItemDelay = 500 * time.Millisecond
	DefaultPageDelay = time.Second
)

// PipelineDeps wires all driven adapters into the harvesting pipeline.
type PipelineDeps struct {
	Walker   *Walker
	Resolver *DetailResolver
	Embeds   ports.EmbedResolver
	Acquirer ports.Acquirer
	Notifier ports.Notifier
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

// PipelineConfig holds pacing and defaults. Zero delays disable sleeping.
type PipelineConfig struct {
	MaxPages  int
	ItemDelay time.Duration
	PageDelay time.Duration
	SkipKnown bool
}

// RunOptions tune a single run.
type RunOptions struct {
	MaxPages int
	Download bool
}

// Pipeline walks the listing, resolves each item and optionally downloads
// its media. Items are processed one at a time with fixed pauses.
type Pipeline struct {
	walker   *Walker
	resolver *DetailResolver
	embeds   ports.EmbedResolver
	acquirer ports.Acquirer
	notifier ports.Notifier
	metrics  *metrics.Recorder
	logger   *slog.Logger
	cfg      PipelineConfig
	pause    func(context.Context, time.Duration) error
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps, cfg PipelineConfig) *Pipeline {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		walker:   deps.Walker,
		resolver: deps.Resolver,
		embeds:   deps.Embeds,
		acquirer: deps.Acquirer,
		notifier: deps.Notifier,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "pipeline"),
		cfg:      cfg,
		pause:    sleep,
	}
}

// Run processes pages 1..MaxPages. Per-item and per-page failures are logged
// and counted; only cancellation of ctx ends the run early.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.RunStats, error) {
	start := time.Now()
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = p.cfg.MaxPages
	}
	if opts.Download && (p.embeds == nil || p.acquirer == nil) {
		return domain.RunStats{}, fmt.Errorf("download requested but no acquisition stage is configured")
	}

	var stats domain.RunStats
	finish := func(err error) (domain.RunStats, error) {
		stats.Duration = time.Since(start)
		return stats, err
	}

	for n, page := range p.walker.Pages(ctx, maxPages) {
		stats.Pages++
		if page.Err != nil {
			stats.FailedPages++
			p.metrics.ListingPage(false)
		} else {
			p.metrics.ListingPage(true)
			p.logger.Info("listing page fetched", "page", n, "items", len(page.Items))
			for _, item := range page.Items {
				p.processItem(ctx, item, opts.Download, &stats)
				if err := p.pause(ctx, p.cfg.ItemDelay); err != nil {
					return finish(err)
				}
			}
		}
		if err := p.pause(ctx, p.cfg.PageDelay); err != nil {
			return finish(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	p.notify(ctx, stats.NewRecords)
	p.logger.Info("run completed",
		"pages", stats.Pages,
		"failed_pages", stats.FailedPages,
		"items", stats.Items,
		"saved", stats.Saved,
		"already_known", stats.AlreadyKnown,
		"failed", stats.Failed,
		"downloaded", stats.Downloaded,
	)
	return finish(nil)
}

func (p *Pipeline) processItem(ctx context.Context, item domain.SummaryItem, download bool, stats *domain.RunStats) {
	stats.Items++
	log := p.logger.With("title", item.Title, "url", item.URL)

	result, err := p.resolver.Resolve(ctx, item.URL)
	if err != nil {
		stats.Failed++
		p.metrics.Item(metrics.OutcomeFailed)
		log.Warn("detail failed", "error", err)
		return
	}

	switch {
	case result.AlreadyKnown:
		stats.AlreadyKnown++
		p.metrics.Item(metrics.OutcomeAlreadyKnown)
		log.Debug("already known")
	case result.Saved:
		stats.Saved++
		stats.NewRecords = append(stats.NewRecords, result.Record)
		p.metrics.Item(metrics.OutcomeSaved)
		log.Info("saved")
	default:
		stats.NotPersisted++
		p.metrics.Item(metrics.OutcomeNotPersisted)
	}

	if !download || (result.AlreadyKnown && p.cfg.SkipKnown) {
		return
	}

	direct, ok := p.embeds.Resolve(ctx, result.Record.EmbedReference)
	if !ok {
		stats.NoMedia++
		log.Warn("no direct media url", "embed", result.Record.EmbedReference)
		return
	}

	acquired, err := p.acquirer.Acquire(ctx, direct, result.Record.Title)
	p.metrics.Download(err == nil, acquired.Bytes)
	if err != nil {
		stats.DownloadFailed++
		log.Warn("download failed", "media", direct, "error", err)
		return
	}
	stats.Downloaded++
	stats.Bytes += acquired.Bytes
}

func (p *Pipeline) notify(ctx context.Context, records []domain.DetailRecord) {
	if p.notifier == nil || len(records) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(records)); err != nil {
		p.logger.Warn("digest not delivered", "records", len(records), "error", err)
	}
}

func buildDigestMessage(records []domain.DetailRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d new videos\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s\n%s\n", rec.Title, rec.URL)
		if len(rec.Fighters) > 0 {
			fmt.Fprintf(&b, "Fighters: %s\n", strings.Join(rec.Fighters, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
