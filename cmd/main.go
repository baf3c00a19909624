// Package main is the entry point for the Xumo playlist generator.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savid/xumo/internal/config"
	"github.com/savid/xumo/internal/fetch"
	"github.com/savid/xumo/internal/pipeline"
	"github.com/savid/xumo/internal/server"
	"github.com/savid/xumo/internal/xumo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var (
	cfg = config.DefaultConfig()
	log = logrus.New()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "xumo",
		Short: "Xumo playlist and guide generator",
		Long:  `Scrapes the Xumo live TV APIs and generates an M3U playlist and a gzipped XMLTV guide.`,
		RunE:  runGenerate,
	}

	// Output flags
	rootCmd.PersistentFlags().StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Output directory")
	rootCmd.PersistentFlags().StringVar(&cfg.PlaylistFilename, "playlist-file", cfg.PlaylistFilename, "Playlist filename")
	rootCmd.PersistentFlags().StringVar(&cfg.GuideFilename, "guide-file", cfg.GuideFilename, "Guide filename")
	rootCmd.PersistentFlags().StringVar(&cfg.GuideURL, "guide-url", cfg.GuideURL, "Published guide URL embedded in the playlist header")

	// Vendor API flags
	rootCmd.PersistentFlags().StringVar(&cfg.GeoID, "geo", cfg.GeoID, "Geo/region code")
	rootCmd.PersistentFlags().StringVar(&cfg.PagingMode, "paging-mode", cfg.PagingMode, "EPG paging unit (offset or hour)")
	rootCmd.PersistentFlags().IntVar(&cfg.PageSize, "page-size", cfg.PageSize, "EPG page size")
	rootCmd.PersistentFlags().IntVar(&cfg.MaxPages, "max-pages", cfg.MaxPages, "Maximum EPG pages per date")
	rootCmd.PersistentFlags().IntVar(&cfg.GuideDays, "days", cfg.GuideDays, "Number of guide days to fetch")
	rootCmd.PersistentFlags().Float64Var(&cfg.RequestRate, "request-rate", cfg.RequestRate, "Vendor API requests per second")

	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generated artifacts over HTTP with periodic regeneration",
		RunE:  runServe,
	}

	serveCmd.Flags().StringVar(&cfg.BindAddr, "bind", cfg.BindAddr, "Bind address")
	serveCmd.Flags().IntVar(&cfg.Port, "port", cfg.Port, "Port number")
	serveCmd.Flags().DurationVar(&cfg.RefreshInterval, "refresh", cfg.RefreshInterval, "Regeneration interval")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*pipeline.Pipeline, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.RequestRate), 1)
	httpClient := fetch.NewClient(log, limiter, fetch.DefaultPolicy())
	api := xumo.NewClient(log, httpClient, cfg.Endpoints(), cfg.Paging())

	return pipeline.New(log, cfg, api), nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	pipe, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"output": cfg.OutputDir,
		"days":   cfg.GuideDays,
	}).Info("Starting generation")

	result, err := pipe.Run(ctx)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"channels": result.ChannelCount,
		"programs": result.ProgramCount,
	}).Info("Generation finished")

	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	pipe, err := setup()
	if err != nil {
		return err
	}

	srv := server.NewServer(log, cfg, pipe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Received shutdown signal")

	return srv.Stop()
}
