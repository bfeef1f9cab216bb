package audio

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
)

type Config struct {
	TempDir           string
	DownloadTimeout   time.Duration
	TranscribeTimeout time.Duration
}

type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outPath string) error
}

// Service is the audio fallback: download, normalize, chunked speech to
// text. All temporary files are removed before it returns.
type Service struct {
	downloader  Downloader
	normalizer  Normalizer
	transcriber *ChunkedTranscriber
	config      Config
	logger      *logrus.Logger
}

func NewService(downloader Downloader, normalizer Normalizer, transcriber *ChunkedTranscriber, cfg Config, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		downloader:  downloader,
		normalizer:  normalizer,
		transcriber: transcriber,
		config:      cfg,
		logger:      logger,
	}
}

// Transcribe returns the transcript text for url or a *models.VideoError.
func (s *Service) Transcribe(ctx context.Context, videoID, url, language string) (string, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"video_id": videoID,
		"url":      url,
	})

	dir, err := os.MkdirTemp(s.config.TempDir, "audio-"+videoID+"-*")
	if err != nil {
		return "", &models.VideoError{Reason: models.ReasonDownloadFailed, Err: err}
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.WithError(err).Warn("Failed to remove temp audio")
		}
	}()

	downloaded, err := s.download(ctx, url, dir)
	if err != nil {
		reason := models.ReasonDownloadFailed
		if errors.IsTransient(err) {
			reason = models.ReasonTransientProviderExhausted
		}
		logger.WithError(err).WithField("reason", reason).Warn("Audio download failed")
		return "", &models.VideoError{Reason: reason, Err: err}
	}

	text, err := s.transcribe(ctx, downloaded, dir, language)
	if err != nil {
		logger.WithError(err).Warn("Audio transcription failed")
		return "", &models.VideoError{Reason: models.ReasonTranscriptionFailed, Err: err}
	}

	logger.WithField("chars", len(text)).Info("Audio transcribed")
	return text, nil
}

func (s *Service) download(ctx context.Context, url, dir string) (string, error) {
	if s.config.DownloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.DownloadTimeout)
		defer cancel()
	}
	return s.downloader.Download(ctx, url, dir)
}

func (s *Service) transcribe(ctx context.Context, downloaded, dir, language string) (string, error) {
	if s.config.TranscribeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.TranscribeTimeout)
		defer cancel()
	}

	wavPath := filepath.Join(dir, "normalized.wav")
	if err := s.normalizer.Normalize(ctx, downloaded, wavPath); err != nil {
		return "", err
	}
	// The raw download can be large; drop it before transcription.
	os.Remove(downloaded)

	return s.transcriber.Transcribe(ctx, wavPath, language)
}
