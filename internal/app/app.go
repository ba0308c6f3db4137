package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/kakmul/ufcserver/internal/api"
	"github.com/kakmul/ufcserver/internal/config"
	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/infrastructure/download"
	"github.com/kakmul/ufcserver/internal/infrastructure/embed"
	"github.com/kakmul/ufcserver/internal/infrastructure/httpclient"
	"github.com/kakmul/ufcserver/internal/infrastructure/parser"
	"github.com/kakmul/ufcserver/internal/infrastructure/scheduler"
	"github.com/kakmul/ufcserver/internal/infrastructure/storage"
	"github.com/kakmul/ufcserver/internal/infrastructure/telegram"
	"github.com/kakmul/ufcserver/internal/logging"
	"github.com/kakmul/ufcserver/internal/metrics"
	"github.com/kakmul/ufcserver/internal/ports"
	"github.com/kakmul/ufcserver/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	db       *sqlx.DB
	postgres *storage.PostgresRepository
	metrics  *metrics.Recorder
	walker   *usecase.Walker
	resolver *usecase.DetailResolver
	pipeline *usecase.Pipeline
}

// New validates cfg and builds every component. The database is opened only
// when a DSN is configured; otherwise records live in memory. The download
// directory is created only when downloads are enabled.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	a := &Application{cfg: cfg, logger: baseLogger}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(registry)

	extractor, err := parser.NewExtractor(cfg.Site.Origin)
	if err != nil {
		return nil, err
	}
	client := httpclient.New(httpclient.Config{Timeout: cfg.HTTP.Timeout, UserAgent: cfg.HTTP.UserAgent}, nil)

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	a.walker = usecase.NewWalker(client, extractor, baseLogger)
	a.resolver = usecase.NewDetailResolver(client, client, extractor, store, baseLogger)

	deps := usecase.PipelineDeps{
		Walker:   a.walker,
		Resolver: a.resolver,
		Metrics:  a.metrics,
		Logger:   baseLogger,
	}
	if cfg.Pipeline.Download {
		downloader, err := download.NewDownloader(client, cfg.Download.Dir, cfg.Download.Extension, baseLogger)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Embeds = embed.NewResolver(client, cfg.Embed.IndirectHosts, baseLogger)
		deps.Acquirer = downloader
	}
	tg := telegram.Config{
		BotToken: cfg.Notifications.Telegram.BotToken,
		ChatID:   cfg.Notifications.Telegram.ChatID,
		APIBase:  cfg.Notifications.Telegram.APIBase,
	}
	if tg.Enabled() {
		deps.Notifier = telegram.NewNotifier(tg, nil)
	}

	a.pipeline = usecase.NewPipeline(deps, usecase.PipelineConfig{
		MaxPages:  cfg.Pipeline.MaxPages,
		ItemDelay: cfg.Pipeline.ItemDelay,
		PageDelay: cfg.Pipeline.PageDelay,
		SkipKnown: cfg.Pipeline.SkipKnown,
	})
	return a, nil
}

func (a *Application) openStore(ctx context.Context) (ports.IdentityStore, error) {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database configured, records are kept in memory")
		return storage.NewMemoryRepository(), nil
	}

	db, err := storage.OpenPostgres(ctx, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewPostgresRepository(db, a.cfg.Database.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	a.db, a.postgres = db, repo
	return repo, nil
}

// Migrate applies the embedded schema to the configured database.
func (a *Application) Migrate(ctx context.Context) error {
	if a.postgres == nil {
		return fmt.Errorf("migrate: no database configured")
	}
	if err := a.postgres.EnsureSchema(ctx); err != nil {
		return err
	}
	a.logger.Info("schema applied", "table", a.cfg.Database.Table)
	return nil
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr: a.cfg.Server.Addr,
		Handler: api.NewServer(a.walker, a.resolver, a.metrics, a.logger, api.Options{
			AllowedOrigins: a.cfg.Server.AllowedOrigins,
			RequestTimeout: api.RequestTimeoutFor(a.cfg.HTTP.Timeout),
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", srv.Addr, "site", a.cfg.Site.Origin)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Scrape performs one pipeline run, or repeats it every scheduler interval
// until ctx is cancelled.
func (a *Application) Scrape(ctx context.Context, maxPages int) (domain.RunStats, error) {
	opts := usecase.RunOptions{MaxPages: maxPages, Download: a.cfg.Pipeline.Download}

	if a.cfg.Scheduler.Interval <= 0 {
		return a.pipeline.Run(ctx, opts)
	}

	sched := usecase.NewScheduler(scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval), a.pipeline, opts, a.logger)
	if err := sched.Start(ctx); err != nil {
		return domain.RunStats{}, err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return domain.RunStats{}, sched.Stop(stopCtx)
}

// Close releases the database handle, if any.
func (a *Application) Close() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("close database", "error", err)
	}
}
