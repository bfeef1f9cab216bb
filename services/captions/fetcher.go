package captions

import (
	"context"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/retry"
)

// Result is the outcome of a caption lookup. Found is false when the
// video has no usable captions or the provider kept failing; Title is set
// whenever metadata could be read.
type Result struct {
	Found     bool
	Title     string
	Selection Selection
	Text      string
}

type FetcherConfig struct {
	TempDir    string
	RetryDelay time.Duration
	Timeout    time.Duration
}

// Fetcher finds, downloads and cleans the best caption track for a video.
type Fetcher struct {
	provider Provider
	config   FetcherConfig
	logger   *logrus.Logger
}

func NewFetcher(provider Provider, cfg FetcherConfig, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{provider: provider, config: cfg, logger: logger}
}

// Fetch never reports provider failures as errors: each provider call is
// retried once after RetryDelay and then treated as "no captions". The
// only error is ctx ending.
func (f *Fetcher) Fetch(ctx context.Context, url string, prefs []string) (*Result, error) {
	logger := f.logger.WithField("url", url)
	result := &Result{}

	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	policy := retry.Policy{
		MaxAttempts: 2,
		Backoff:     retry.Fixed(f.config.RetryDelay),
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.WithError(err).WithField("wait", wait).Warn("Caption provider failed, retrying")
		},
	}

	info, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (*VideoInfo, error) {
		return f.provider.Info(ctx, url)
	})
	if err != nil {
		logger.WithError(err).Warn("Could not fetch caption info")
		return result, parentErr(ctx)
	}
	result.Title = info.Title

	sel, ok := SelectTrack(info, prefs)
	if !ok {
		logger.Info("No captions available")
		return result, nil
	}
	result.Selection = sel

	dir, err := os.MkdirTemp(f.config.TempDir, "captions-*")
	if err != nil {
		logger.WithError(err).Error("Failed to create caption temp dir")
		return result, nil
	}
	defer os.RemoveAll(dir)

	path, err := retry.Do(ctx, policy, func(ctx context.Context, _ int) (string, error) {
		return f.provider.Download(ctx, url, sel, dir)
	})
	if err != nil {
		logger.WithError(err).WithField("language", sel.Language).Warn("Could not download captions")
		return result, parentErr(ctx)
	}

	text, err := ReadCaptionFile(path)
	if err != nil {
		logger.WithError(err).Warn("Could not read caption file")
		return result, nil
	}
	if text == "" {
		logger.Info("Caption track was empty")
		return result, nil
	}

	logger.WithFields(logrus.Fields{
		"language": sel.Language,
		"auto":     sel.Auto,
		"chars":    len(text),
	}).Info("Captions resolved")

	result.Found = true
	result.Text = text
	return result, nil
}

// parentErr surfaces cancellation of the caller's context. The lookup's
// own timeout is just another provider failure.
func parentErr(ctx context.Context) error {
	if ctx.Err() == context.Canceled {
		return ctx.Err()
	}
	return nil
}
