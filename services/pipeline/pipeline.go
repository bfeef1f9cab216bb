package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/services/captions"
	"github.com/nijaru/yt-digest/services/summary"
	"github.com/nijaru/yt-digest/services/transcript"
	"github.com/nijaru/yt-digest/storage"
)

// TranscriptResolver is the caption and audio fallback chain.
type TranscriptResolver interface {
	FromCaptions(ctx context.Context, v *models.VideoDescriptor, prefs []string) (*transcript.Result, error)
	FromAudio(ctx context.Context, v *models.VideoDescriptor, language string) (*transcript.Result, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string, opts summary.Options) (string, error)
	Extract(ctx context.Context, summaries []string) (string, error)
}

// JobConfig is the per-job context every video step needs.
type JobConfig struct {
	JobID   string
	Options models.Options
	// SingleVideo jobs try the requested language before the defaults.
	SingleVideo bool
}

func (c JobConfig) captionPrefs(v *models.VideoDescriptor) []string {
	requested := ""
	if c.SingleVideo {
		requested = c.Options.Language
	}
	return captions.PreferencesFor(v.QueryLang, requested)
}

func (c JobConfig) summaryOptions() summary.Options {
	return summary.Options{
		Template:          c.Options.Template,
		ExtraInstructions: c.Options.ExtraInstructions,
	}
}

// Pipeline runs the per-video steps. Every step is idempotent: an artifact
// that already exists is adopted instead of being produced again.
//
// Step errors are reserved for cancellation and artifact store failures.
// Anything that goes wrong with one video is recorded on its descriptor.
type Pipeline struct {
	resolver   TranscriptResolver
	summarizer Summarizer
	store      storage.ArtifactStore
	logger     *logrus.Logger
}

func New(resolver TranscriptResolver, summarizer Summarizer, store storage.ArtifactStore, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		resolver:   resolver,
		summarizer: summarizer,
		store:      store,
		logger:     logger,
	}
}

func (p *Pipeline) videoLogger(cfg JobConfig, v *models.VideoDescriptor) *logrus.Entry {
	return p.logger.WithFields(logrus.Fields{
		"job_id":   cfg.JobID,
		"video_id": v.VideoID,
	})
}

// adoptTranscript points v at a transcript artifact left by an earlier run.
func (p *Pipeline) adoptTranscript(ctx context.Context, cfg JobConfig, v *models.VideoDescriptor) (bool, error) {
	const op = "Pipeline.adoptTranscript"

	for _, source := range []models.TranscriptSource{models.SourceCaptions, models.SourceAudio} {
		key := storage.TranscriptKey(cfg.JobID, v.VideoID, source)
		ok, err := p.store.Exists(ctx, key)
		if err != nil {
			return false, errors.Internal(op, err, "Failed to check transcript artifact")
		}
		if ok {
			v.SetTranscript(key, source)
			p.videoLogger(cfg, v).WithField("source", source).Debug("Reusing transcript artifact")
			return true, nil
		}
	}
	return false, nil
}

func (p *Pipeline) saveTranscript(ctx context.Context, cfg JobConfig, v *models.VideoDescriptor, res *transcript.Result) error {
	const op = "Pipeline.saveTranscript"

	key := storage.TranscriptKey(cfg.JobID, v.VideoID, res.Source)
	if err := p.store.Put(ctx, key, []byte(res.Text)); err != nil {
		return errors.Internal(op, err, "Failed to store transcript")
	}
	v.SetTranscript(key, res.Source)

	p.videoLogger(cfg, v).WithFields(logrus.Fields{
		"source": res.Source,
		"chars":  len(res.Text),
	}).Info("Transcript stored")
	return nil
}

// ResolveCaptions tries the caption path for v. A video without captions
// is left without a transcript for the audio step.
func (p *Pipeline) ResolveCaptions(ctx context.Context, cfg JobConfig, v *models.VideoDescriptor) error {
	if v.HasTranscript() {
		return nil
	}
	if ok, err := p.adoptTranscript(ctx, cfg, v); err != nil || ok {
		return err
	}

	res, err := p.resolver.FromCaptions(ctx, v, cfg.captionPrefs(v))
	if err != nil {
		return err
	}
	if v.Title == "" {
		v.Title = res.Title
	}
	if res.Text == "" {
		p.videoLogger(cfg, v).Info("No captions found")
		return nil
	}
	return p.saveTranscript(ctx, cfg, v, res)
}

// ResolveAudio runs speech-to-text for a video the caption step left
// without a transcript.
func (p *Pipeline) ResolveAudio(ctx context.Context, cfg JobConfig, v *models.VideoDescriptor) error {
	if v.HasTranscript() || v.TranscriptFailed {
		return nil
	}
	if !cfg.Options.ProcessAudio {
		v.Fail(models.ReasonNoCaptionsNoAudio)
		p.videoLogger(cfg, v).Info("No captions and audio processing disabled")
		return nil
	}

	res, err := p.resolver.FromAudio(ctx, v, transcript.AudioLanguage(v.QueryLang))
	if err != nil {
		return p.recordFailure(ctx, cfg, v, err)
	}
	return p.saveTranscript(ctx, cfg, v, res)
}

func (p *Pipeline) recordFailure(ctx context.Context, cfg JobConfig, v *models.VideoDescriptor, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	reason, ok := models.ReasonOf(err)
	if !ok {
		reason = models.ReasonTranscriptionFailed
	}
	v.Fail(reason)
	p.videoLogger(cfg, v).WithError(err).WithField("reason", reason).Warn("Transcript resolution failed")
	return nil
}

// Summarize writes the summary artifact for v and returns the finished
// item. An existing summary is kept and the backend is not called again.
// The item is nil when v has no transcript or its summary failed.
func (p *Pipeline) Summarize(ctx context.Context, cfg JobConfig, v *models.VideoDescriptor) (*models.SummaryItem, error) {
	const op = "Pipeline.Summarize"

	if !v.HasTranscript() {
		return nil, nil
	}
	log := p.videoLogger(cfg, v)

	text, err := p.store.Get(ctx, v.TranscriptPath)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to read transcript")
	}

	key := storage.SummaryKey(cfg.JobID, v.VideoID)
	existing, err := p.store.Get(ctx, key)
	switch {
	case err == nil:
		log.Debug("Summary already exists, skipping")
		return summaryItem(v, string(existing), string(text)), nil
	case !errors.IsNotFound(err):
		return nil, errors.Internal(op, err, "Failed to read summary artifact")
	}

	result, err := p.summarizer.Summarize(ctx, string(text), cfg.summaryOptions())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		v.FailSummary()
		log.WithError(err).Warn("Summarization failed")
		return nil, nil
	}

	if err := p.store.Put(ctx, key, []byte(result)); err != nil {
		return nil, errors.Internal(op, err, "Failed to store summary")
	}
	log.WithField("chars", len(result)).Info("Summary stored")
	return summaryItem(v, result, string(text)), nil
}

func summaryItem(v *models.VideoDescriptor, summaryText, transcriptText string) *models.SummaryItem {
	return &models.SummaryItem{
		VideoID:        v.VideoID,
		Title:          v.DisplayTitle(),
		URL:            v.URL,
		Summary:        summaryText,
		FullTranscript: transcriptText,
	}
}
