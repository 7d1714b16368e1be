package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/thumbnailer/internal/config"
	"github.com/aliskhannn/thumbnailer/internal/fetcher"
	"github.com/aliskhannn/thumbnailer/internal/infra/httpclient"
	"github.com/aliskhannn/thumbnailer/internal/pipeline"
	"github.com/aliskhannn/thumbnailer/internal/processor"
	"github.com/aliskhannn/thumbnailer/internal/storage/file"
	"github.com/aliskhannn/thumbnailer/internal/transformer"
)

func main() {
	// Context & signals: an interrupt cancels in-flight downloads and transforms.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()

	flags := pflag.NewFlagSet(filepath.Base(os.Args[0]), pflag.ExitOnError)
	config.RegisterFlags(flags)
	_ = flags.Parse(os.Args[1:])

	configPath, _ := flags.GetString("config")
	cfg := config.MustLoad(configPath, flags)

	logger := zlog.Logger.With().Str("app", "thumbnailer").Logger()

	handoff, err := pipeline.ParseHandoff(cfg.Pipeline.Handoff)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid pipeline config")
	}

	workdir, err := filepath.Abs(cfg.Workdir)
	if err != nil {
		logger.Fatal().Err(err).Str("workdir", cfg.Workdir).Msg("failed to resolve workdir")
	}

	// Initialize file storage rooted at the workdir.
	storage := file.NewLocalStorage(workdir)

	failFast := !cfg.Pipeline.ContinueOnError

	client := httpclient.New(httpclient.Options{
		Timeout:             cfg.Fetcher.Timeout,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConnsPerHost,
		ValidateStatus:      cfg.Fetcher.ValidateStatus,
	})

	f := fetcher.New(client, storage, logger.With().Str("stage", "fetch").Logger(), fetcher.Options{
		Workers:       cfg.Fetcher.Workers,
		Dir:           cfg.Storage.ImagesDir,
		VerifyContent: cfg.Fetcher.VerifyContent,
		FailFast:      failFast,
	})

	imageProcessor := processor.New(storage, cfg.Storage.ProcessedDir)
	t := transformer.New(imageProcessor, storage, logger.With().Str("stage", "transform").Logger(), transformer.Options{
		Workers:   cfg.Transformer.Workers,
		InputDir:  cfg.Storage.ImagesDir,
		OutputDir: cfg.Storage.ProcessedDir,
		FailFast:  failFast,
	})

	p := pipeline.New(f, t, logger, pipeline.Options{
		Handoff:         handoff,
		ContinueOnError: cfg.Pipeline.ContinueOnError,
	})

	logger.Info().
		Str("workdir", workdir).
		Int("sources", len(cfg.Sources)).
		Msg("starting thumbnailer")

	report, err := p.Run(ctx, cfg.Sources)

	logger.Info().
		Str("run_id", report.RunID.String()).
		Int("stored", len(report.Stored)).
		Int("processed", len(report.Processed)).
		Float64("seconds", report.Elapsed.Seconds()).
		Msgf("time taken: %.2f seconds", report.Elapsed.Seconds())

	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline failed")
	}
}
