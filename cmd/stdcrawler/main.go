package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"StandardsCrawler/internal/app"
	"StandardsCrawler/internal/config"
	"StandardsCrawler/internal/logging"
)

var cfgFile string

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "stdcrawler",
		Short:         "Crawl the industry standard registry",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (default $STDCRAWLER_CONFIG)")

	root.AddCommand(
		stageCommand("categories", "Harvest the category taxonomy", (*app.Application).CrawlAllCategories),
		stageCommand("records", "Harvest every category's listing", (*app.Application).CrawlAllRecords),
		stageCommand("details", "Enrich standards lacking detail info", (*app.Application).EnrichAllDetails),
		stageCommand("download", "Download documents never attempted", (*app.Application).DownloadAllDocuments),
		stageCommand("retry", "Retry failed downloads under the retry limit", (*app.Application).RetryFailedDownloads),
		serveCommand(),
	)
	return root
}

func stageCommand(use, short string, stage func(*app.Application, context.Context) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), func(a *app.Application) error {
				fmt.Fprintln(cmd.OutOrStdout(), stage(a, cmd.Context()))
				return nil
			})
		},
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run stages on their cron schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApplication(cmd.Context(), func(a *app.Application) error {
				return a.Serve(cmd.Context())
			})
		},
	}
}

func withApplication(ctx context.Context, fn func(*app.Application) error) error {
	cfg := config.Load()
	if cfgFile != "" {
		cfg = config.LoadFrom(cfgFile)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	return fn(application)
}
