package audio

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/retry"
	"github.com/nijaru/yt-digest/scripts"
)

// Downloader fetches the best available audio for a video into dir and
// returns the file path. Rate limiting must be reported as a Transient
// error so callers can back off.
type Downloader interface {
	Download(ctx context.Context, url, dir string) (string, error)
}

// YtDlpDownloader downloads with the yt-dlp binary.
type YtDlpDownloader struct {
	runner     scripts.Runner
	binary     string
	ffmpegPath string
	logger     *logrus.Logger
}

func NewYtDlpDownloader(runner scripts.Runner, binary, ffmpegPath string, logger *logrus.Logger) *YtDlpDownloader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &YtDlpDownloader{runner: runner, binary: binary, ffmpegPath: ffmpegPath, logger: logger}
}

func (d *YtDlpDownloader) Download(ctx context.Context, url, dir string) (string, error) {
	const op = "YtDlpDownloader.Download"

	args := []string{
		"-f", "bestaudio/best",
		"--no-playlist",
		"--no-warnings",
		"--no-progress",
		"-o", filepath.Join(dir, "audio.%(ext)s"),
	}
	if d.ffmpegPath != "" && d.ffmpegPath != "ffmpeg" {
		args = append(args, "--ffmpeg-location", d.ffmpegPath)
	}
	args = append(args, url)

	if _, err := d.runner.Run(ctx, d.binary, args...); err != nil {
		if scripts.IsRateLimited(err) {
			return "", errors.Transient(op, err, "audio download rate limited")
		}
		return "", errors.Downstream(op, err, "audio download failed")
	}

	matches, err := filepath.Glob(filepath.Join(dir, "audio.*"))
	if err != nil || len(matches) == 0 {
		return "", errors.Downstream(op, err, "downloaded audio file not found")
	}
	sort.Strings(matches)
	return matches[0], nil
}

// NativeDownloader downloads through the platform's player API without
// any external binary.
type NativeDownloader struct {
	client *youtube.Client
	logger *logrus.Logger
}

func NewNativeDownloader(client *youtube.Client, logger *logrus.Logger) *NativeDownloader {
	if client == nil {
		client = &youtube.Client{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &NativeDownloader{client: client, logger: logger}
}

func (d *NativeDownloader) Download(ctx context.Context, url, dir string) (string, error) {
	const op = "NativeDownloader.Download"

	video, err := d.client.GetVideoContext(ctx, url)
	if err != nil {
		return "", classifyNative(op, err, "failed to load video metadata")
	}

	formats := video.Formats.Type("audio")
	if len(formats) == 0 {
		formats = video.Formats.WithAudioChannels()
	}
	if len(formats) == 0 {
		return "", errors.ResourceNotFound(op, nil, "no audio formats available")
	}
	formats.Sort()
	format := formats[0]

	stream, _, err := d.client.GetStreamContext(ctx, video, &format)
	if err != nil {
		return "", classifyNative(op, err, "failed to open audio stream")
	}
	defer stream.Close()

	path := filepath.Join(dir, "audio."+extensionFor(format.MimeType))
	file, err := os.Create(path)
	if err != nil {
		return "", errors.Internal(op, err, "failed to create audio file")
	}
	defer file.Close()

	written, err := io.Copy(file, stream)
	if err != nil {
		return "", classifyNative(op, err, "failed to read audio stream")
	}

	d.logger.WithFields(logrus.Fields{
		"video_id": video.ID,
		"mime":     format.MimeType,
		"bytes":    written,
	}).Debug("Audio downloaded")
	return path, nil
}

func classifyNative(op string, err error, message string) error {
	var status youtube.ErrUnexpectedStatusCode
	if stderrors.As(err, &status) && int(status) == 429 {
		return errors.Transient(op, err, message)
	}
	return errors.Downstream(op, err, message)
}

func extensionFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "audio/webm"):
		return "webm"
	case strings.HasPrefix(mimeType, "audio/mp4"):
		return "m4a"
	case strings.HasPrefix(mimeType, "video/mp4"):
		return "mp4"
	case strings.HasPrefix(mimeType, "video/webm"):
		return "webm"
	default:
		return "bin"
	}
}

// RetryingDownloader retries rate limited downloads with exponential
// backoff. Any other failure is returned at once.
type RetryingDownloader struct {
	inner    Downloader
	attempts int
	backoff  time.Duration
	logger   *logrus.Logger
}

func NewRetryingDownloader(inner Downloader, attempts int, backoff time.Duration, logger *logrus.Logger) *RetryingDownloader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RetryingDownloader{inner: inner, attempts: attempts, backoff: backoff, logger: logger}
}

func (d *RetryingDownloader) Download(ctx context.Context, url, dir string) (string, error) {
	const op = "RetryingDownloader.Download"

	path, err := retry.Do(ctx, retry.Policy{
		MaxAttempts: d.attempts,
		Backoff:     retry.Exponential(d.backoff, 0, 2),
		Retryable:   errors.IsTransient,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
				"wait":    wait,
			}).Warn("Audio download rate limited, backing off")
		},
	}, func(ctx context.Context, _ int) (string, error) {
		return d.inner.Download(ctx, url, dir)
	})

	var exhausted *retry.ExhaustedError
	if stderrors.As(err, &exhausted) {
		return "", errors.Transient(op, err, "audio download still rate limited after retries")
	}
	return path, err
}
