package transcript

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/services/captions"
)

// CaptionFetcher looks up and cleans captions. It reports provider
// trouble as "not found", never as an error.
type CaptionFetcher interface {
	Fetch(ctx context.Context, url string, prefs []string) (*captions.Result, error)
}

// AudioTranscriber is the speech-to-text fallback. Failures are
// *models.VideoError values.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, videoID, url, language string) (string, error)
}

// Result is a resolved transcript.
type Result struct {
	Text   string
	Source models.TranscriptSource
	// Title is the platform title when the caption lookup could read it.
	Title string
}

// Resolver produces one transcript per video: captions first, audio
// speech-to-text when there are none.
type Resolver struct {
	captions CaptionFetcher
	audio    AudioTranscriber
	logger   *logrus.Logger
}

func NewResolver(captions CaptionFetcher, audio AudioTranscriber, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{captions: captions, audio: audio, logger: logger}
}

// FromCaptions returns a Result with empty Text when the video has no
// usable captions. The error is non-nil only when ctx was cancelled.
func (r *Resolver) FromCaptions(ctx context.Context, v *models.VideoDescriptor, prefs []string) (*Result, error) {
	found, err := r.captions.Fetch(ctx, v.URL, prefs)
	if err != nil {
		return nil, err
	}

	result := &Result{Title: found.Title}
	if found.Found {
		result.Text = found.Text
		result.Source = models.SourceCaptions
	}
	return result, nil
}

// FromAudio returns a *models.VideoError when the audio path fails, or
// when audio processing is unavailable.
func (r *Resolver) FromAudio(ctx context.Context, v *models.VideoDescriptor, language string) (*Result, error) {
	if r.audio == nil {
		return nil, &models.VideoError{Reason: models.ReasonNoCaptionsNoAudio}
	}

	text, err := r.audio.Transcribe(ctx, v.VideoID, v.URL, language)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"video_id": v.VideoID,
			"language": language,
		}).WithError(err).Debug("Audio transcription failed")
		if _, ok := models.ReasonOf(err); ok {
			return nil, err
		}
		return nil, &models.VideoError{Reason: models.ReasonTranscriptionFailed, Err: err}
	}
	return &Result{Text: text, Source: models.SourceAudio}, nil
}

// AudioLanguage picks the speech engine language for a query language.
// An empty query language leaves detection to the engine.
func AudioLanguage(queryLang string) string {
	if queryLang == "" {
		return "auto"
	}
	return queryLang
}
