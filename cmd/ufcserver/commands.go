package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kakmul/ufcserver/internal/app"
	"github.com/kakmul/ufcserver/internal/config"
	"github.com/kakmul/ufcserver/internal/logging"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "ufcserver",
		Short:         "Harvest a fight video catalog into a local store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (default $UFCSERVER_CONFIG)")

	cmd.AddCommand(newServeCmd(opts), newScrapeCmd(opts), newMigrateCmd(opts))
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the listing and detail HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
}

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	var (
		maxPages int
		download bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Walk the listing, store new videos and optionally download them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("download") {
				cfg.Pipeline.Download = download
			}
			if cmd.Flags().Changed("interval") {
				cfg.Scheduler.Interval = interval
			}
			if maxPages < 0 {
				return fmt.Errorf("--max-pages must not be negative")
			}

			logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Scrape(cmd.Context(), maxPages)
			if err != nil && !errors.Is(err, cmd.Context().Err()) {
				return err
			}
			if cfg.Scheduler.Interval <= 0 {
				logger.Info("scrape finished",
					"pages", stats.Pages,
					"items", stats.Items,
					"saved", stats.Saved,
					"already_known", stats.AlreadyKnown,
					"failed", stats.Failed,
					"downloaded", stats.Downloaded,
					"duration", stats.Duration.Round(time.Millisecond),
				)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "number of listing pages to walk (default from config)")
	cmd.Flags().BoolVar(&download, "download", false, "download media of newly stored videos")
	cmd.Flags().DurationVar(&interval, "interval", 0, "repeat the scrape on this interval until interrupted")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the video table and its unique indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Migrate(cmd.Context())
		},
	}
}
