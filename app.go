package main

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/logger"
	"github.com/nijaru/yt-digest/repository"
	"github.com/nijaru/yt-digest/repository/memory"
	"github.com/nijaru/yt-digest/repository/postgres"
	"github.com/nijaru/yt-digest/repository/sqlite"
	"github.com/nijaru/yt-digest/scripts"
	"github.com/nijaru/yt-digest/services/audio"
	"github.com/nijaru/yt-digest/services/captions"
	"github.com/nijaru/yt-digest/services/job"
	"github.com/nijaru/yt-digest/services/pipeline"
	"github.com/nijaru/yt-digest/services/search"
	"github.com/nijaru/yt-digest/services/summary"
	"github.com/nijaru/yt-digest/services/transcript"
	"github.com/nijaru/yt-digest/storage"
)

// App holds the wired services shared by every command.
type App struct {
	Config *config.Config
	Logger *logrus.Logger
	Jobs   *job.Service

	closers []func() error
}

// NewApp loads configuration and builds the job service. driver overrides
// DB_DRIVER when set.
func NewApp(ctx context.Context, envFile, driver string) (*App, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if driver != "" {
		cfg.Database.Driver = driver
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.Debug {
		log.SetLevel(logrus.DebugLevel)
	}

	app := &App{Config: cfg, Logger: log}

	repo, err := openRepository(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, repo.Close)

	store, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	generator, err := summary.NewGenerator(ctx, cfg.Summary)
	switch {
	case errors.IsConfiguration(err):
		log.WithError(err).Warn("Summary backend not configured, jobs will be rejected")
		generator = summary.Unavailable{Err: err}
	case err != nil:
		app.Close()
		return nil, err
	}
	if closer, ok := generator.(interface{ Close() error }); ok {
		app.closers = append(app.closers, closer.Close)
	}

	summarizer := summary.NewSummarizer(generator, cfg.Pipeline.SummarizeTimeout, log)

	lister, err := newLister(ctx, cfg, summarizer, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	pipe := pipeline.New(newResolver(cfg, log), summarizer, store, log)
	orchestrator := pipeline.NewOrchestrator(pipe, repo, store, lister, pipeline.Config{
		AudioWorkers:     cfg.Pipeline.AudioWorkers,
		SummarizeWorkers: cfg.Pipeline.SummarizeWorkers,
		CaptionInterval:  cfg.Pipeline.CaptionInterval,
		SummarizePerMin:  cfg.Pipeline.SummarizePerMin,
	}, log)

	app.Jobs = job.NewService(repo, orchestrator, cfg.MissingCredentials, job.Config{
		Workers:    cfg.Pipeline.MaxConcurrentJobs,
		QueueSize:  cfg.Pipeline.QueueSize,
		JobTimeout: cfg.Pipeline.JobTimeout,
	}, log)

	return app, nil
}

// Close stops the job workers and releases the repository and clients.
func (a *App) Close() {
	if a.Jobs != nil {
		a.Jobs.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.WithError(err).Error("Failed to close resource")
		}
	}
}

func openRepository(ctx context.Context, cfg config.DatabaseConfig) (repository.JobRepository, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.Path, sqlite.ConfigFrom(cfg))
	case "postgres":
		return postgres.Open(ctx, cfg)
	case "memory":
		return memory.New(), nil
	default:
		return nil, errors.Configuration("openRepository", nil, fmt.Sprintf("unknown database driver %q", cfg.Driver))
	}
}

func newResolver(cfg *config.Config, log *logrus.Logger) *transcript.Resolver {
	runner := scripts.NewExecRunner(scripts.Config{}, log)

	fetcher := captions.NewFetcher(
		captions.NewYtDlpProvider(runner, cfg.Tools.YtDlpPath, log),
		captions.FetcherConfig{
			TempDir:    cfg.Pipeline.TempDir,
			RetryDelay: cfg.Pipeline.CaptionRetryDelay,
			Timeout:    cfg.Pipeline.CaptionTimeout,
		},
		log,
	)

	var downloader audio.Downloader
	if cfg.Pipeline.Downloader == "native" {
		downloader = audio.NewNativeDownloader(&youtube.Client{}, log)
	} else {
		downloader = audio.NewYtDlpDownloader(runner, cfg.Tools.YtDlpPath, cfg.Tools.FFmpegPath, log)
	}
	downloader = audio.NewRetryingDownloader(downloader, cfg.Pipeline.DownloadAttempts, cfg.Pipeline.DownloadBackoff, log)

	ffmpeg := audio.NewFFmpeg(runner, cfg.Tools.FFmpegPath)
	whisper := audio.NewWhisperTranscriber(runner, cfg.Tools.WhisperPath, cfg.Tools.WhisperModel, log)
	audioService := audio.NewService(
		downloader,
		ffmpeg,
		audio.NewChunkedTranscriber(ffmpeg, whisper, cfg.Pipeline.ChunkDuration, cfg.Pipeline.ChunkWorkers, log),
		audio.Config{
			TempDir:           cfg.Pipeline.TempDir,
			DownloadTimeout:   cfg.Pipeline.DownloadTimeout,
			TranscribeTimeout: cfg.Pipeline.TranscribeTimeout,
		},
		log,
	)

	return transcript.NewResolver(fetcher, audioService, log)
}

// newLister builds the video lister. Without a YouTube key only single
// URL jobs can be listed; query jobs are rejected at submission. The
// summary backend doubles as the query translator.
func newLister(ctx context.Context, cfg *config.Config, translator search.Translator, log *logrus.Logger) (*job.Lister, error) {
	if cfg.Search.YouTubeAPIKey == "" {
		return job.NewLister(nil), nil
	}

	api, err := search.NewYouTubeAPI(ctx, cfg.Search.YouTubeAPIKey)
	if err != nil {
		return nil, err
	}
	return job.NewLister(search.NewSearcher(api, translator, cfg.Search, log)), nil
}
