package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"ctifeed/internal/api"
	"ctifeed/internal/bot"
	"ctifeed/internal/config"
	"ctifeed/internal/domain"
	"ctifeed/internal/schedule"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface, the scheduler and the Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(os.Stdout)
			if err != nil {
				return err
			}
			a, err := buildApp(cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			log.Info("Starting ctifeed...")

			if cfg.Schedule != "" {
				sched, err := schedule.New(cfg.Schedule, func(ctx context.Context) error {
					_, err := a.pipeline.RunIngestionCycle(ctx)
					return err
				}, log)
				if err != nil {
					return err
				}
				sched.Start()
				defer sched.Stop()
			}

			deps := api.Deps{Pipeline: a.pipeline, Reader: a.aggregator, Briefings: a.briefings}
			if cfg.BlobBackend == config.BlobFS {
				deps.BlobDir = cfg.BlobFSDir
			}
			server := api.NewServer(cfg.HTTPAddr, deps, log)
			serverErr := make(chan error, 1)
			go func() { serverErr <- server.Start() }()

			if cfg.TelegramBotToken != "" {
				botHandler, err := bot.NewHandler(cfg.TelegramBotToken, a.aggregator, a.briefings, log)
				if err != nil {
					log.WithError(err).Error("Telegram bot disabled")
				} else {
					go botHandler.Start(ctx)
				}
			}

			log.Info("ctifeed is running. Press Ctrl+C to exit.")
			select {
			case <-ctx.Done():
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}

			log.Info("Shutting down ctifeed...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Error("HTTP shutdown failed")
			}
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle",
		Long: `Run one ingestion cycle and print its report.

With the fs blob backend and no BLOB_PUBLIC_BASE_URL, cached images are published
under the /blobs route of "ctifeed serve". Unless a serve process is listening on
HTTP_ADDR, the reachability check fails and every article keeps its source image.
Set BLOB_PUBLIC_BASE_URL to an address that serves BLOB_FS_DIR to avoid this.`,
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if a.cfg.SelfServedBlobs() {
				a.log.WithField("public_base", a.cfg.BlobPublicBaseURL).
					Warn("Cached images are served by ctifeed serve; without it they fall back to source URLs")
			}
			report, err := a.pipeline.RunIngestionCycle(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		}),
	}
}

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Apply the retention policy to the record store",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			report, err := a.pipeline.RunRetention(ctx)
			if err != nil {
				return err
			}
			return printJSON(report)
		}),
	}
}

func newResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Print the aggregated feeds, indicators and clusters",
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			return printJSON(a.aggregator.ListResults(ctx))
		}),
	}
}

func newArticleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "article <link>",
		Short: "Print one article with its risk assessment",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			view, err := a.aggregator.GetArticle(ctx, args[0])
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("no article found for %s", args[0])
			}
			if err != nil {
				return err
			}
			return printJSON(view)
		}),
	}
}

// withApp wraps a one-shot subcommand with configuration and component setup.
func withApp(run func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		// Logs go to stderr so stdout carries only the JSON result.
		cfg, log, err := setup(os.Stderr)
		if err != nil {
			return err
		}
		a, err := buildApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return run(cmd.Context(), a, args)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
