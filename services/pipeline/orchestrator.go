package pipeline

import (
	"context"
	stderrors "errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository"
	"github.com/nijaru/yt-digest/storage"
)

// VideoLister turns a job's input into the videos to process.
type VideoLister interface {
	Videos(ctx context.Context, job *models.Job) ([]*models.VideoDescriptor, error)
}

type Config struct {
	AudioWorkers     int
	SummarizeWorkers int
	// CaptionInterval spaces caption lookups. Zero disables spacing.
	CaptionInterval time.Duration
	// SummarizePerMin caps summary requests across every job. Zero
	// disables the cap.
	SummarizePerMin int
}

// Orchestrator drives one job through its phases. The rate limiters are
// shared by every job it runs.
type Orchestrator struct {
	pipeline *Pipeline
	repo     repository.JobRepository
	store    storage.ArtifactStore
	lister   VideoLister
	config   Config
	logger   *logrus.Logger

	captionLimiter   *rate.Limiter
	summarizeLimiter *rate.Limiter
}

func NewOrchestrator(
	pipeline *Pipeline,
	repo repository.JobRepository,
	store storage.ArtifactStore,
	lister VideoLister,
	cfg Config,
	logger *logrus.Logger,
) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.AudioWorkers < 1 {
		cfg.AudioWorkers = 1
	}
	if cfg.SummarizeWorkers < 1 {
		cfg.SummarizeWorkers = 1
	}

	captionLimit := rate.Inf
	if cfg.CaptionInterval > 0 {
		captionLimit = rate.Every(cfg.CaptionInterval)
	}
	summarizeLimit := rate.Inf
	if cfg.SummarizePerMin > 0 {
		summarizeLimit = rate.Every(time.Minute / time.Duration(cfg.SummarizePerMin))
	}

	return &Orchestrator{
		pipeline:         pipeline,
		repo:             repo,
		store:            store,
		lister:           lister,
		config:           cfg,
		logger:           logger,
		captionLimiter:   rate.NewLimiter(captionLimit, 1),
		summarizeLimiter: rate.NewLimiter(summarizeLimit, 1),
	}
}

// Run processes job to a terminal status. Per-video failures never fail
// the job; listing errors, artifact store errors and cancellation do.
// The returned error is the one recorded on the job.
func (o *Orchestrator) Run(ctx context.Context, job *models.Job) error {
	log := o.logger.WithField("job_id", job.ID)
	start := time.Now()

	cfg := JobConfig{
		JobID:       job.ID,
		Options:     job.Options,
		SingleVideo: job.Query == "",
	}

	err := o.run(ctx, job, cfg, log)
	if err != nil {
		if stderrors.Is(err, repository.ErrJobFinished) {
			log.Info("Job finished elsewhere, stopping")
			return nil
		}
		o.fail(ctx, job.ID, err, log)
		return err
	}

	log.WithField("duration", time.Since(start)).Info("Job completed")
	return nil
}

func (o *Orchestrator) run(ctx context.Context, job *models.Job, cfg JobConfig, log *logrus.Entry) error {
	const op = "Orchestrator.run"

	if err := o.enter(ctx, job.ID, models.PhaseInit, models.JobUpdate{}); err != nil {
		return err
	}

	videos, err := o.lister.Videos(ctx, job)
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		return errors.ResourceNotFound(op, nil, "No videos found")
	}
	log.WithField("videos", len(videos)).Info("Videos resolved")

	if err := o.enter(ctx, job.ID, models.PhaseCaptions, models.JobUpdate{}); err != nil {
		return err
	}
	if err := o.captionPhase(ctx, cfg, videos); err != nil {
		return err
	}

	titleUpdate := models.JobUpdate{}
	if cfg.SingleVideo && job.VideoTitle == "" && videos[0].Title != "" {
		titleUpdate.VideoTitle = models.StringPtr(videos[0].Title)
	}
	if needsAudio(videos) && cfg.Options.ProcessAudio {
		if err := o.enter(ctx, job.ID, models.PhaseAudio, titleUpdate); err != nil {
			return err
		}
		titleUpdate = models.JobUpdate{}
	}
	if err := o.audioPhase(ctx, cfg, videos); err != nil {
		return err
	}

	if err := o.enter(ctx, job.ID, models.PhaseSummarize, titleUpdate); err != nil {
		return err
	}
	if err := o.summarizePhase(ctx, job.ID, cfg, videos); err != nil {
		return err
	}

	items, summaries, err := o.collect(ctx, cfg, videos)
	if err != nil {
		return err
	}
	if err := o.enter(ctx, job.ID, models.PhaseExtract, models.JobUpdate{
		Result: &models.Result{IndividualSummaries: items},
	}); err != nil {
		return err
	}

	var warnings []string
	final, err := o.extract(ctx, cfg, summaries)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.IsKind(err, errors.KindInternal) {
			return err
		}
		log.WithError(err).Warn("Final extraction failed")
		warnings = append(warnings, "final extraction failed")
	}

	report := CheckConsistency(videos, len(items))
	if !report.Match {
		log.WithFields(logrus.Fields{
			"expected": report.Expected,
			"actual":   report.Actual,
		}).Warn("Summary count mismatch")
		warnings = append(warnings, report.Warning())
	}
	if len(items) == 0 {
		warnings = append(warnings, "no video produced a summary")
	}

	update := models.JobUpdate{
		Status: models.StatusPtr(models.StatusSuccess),
		Phase:  models.PhasePtr(models.PhaseDone),
		Result: &models.Result{FinalContent: final, IndividualSummaries: items},
	}
	if len(warnings) > 0 {
		update.Warning = models.StringPtr(strings.Join(warnings, "; "))
	}
	_, err = o.repo.Update(ctx, job.ID, update)
	return err
}

// enter moves the job into phase, applying any extra fields in update.
func (o *Orchestrator) enter(ctx context.Context, jobID string, phase models.Phase, update models.JobUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	update.Status = models.StatusPtr(models.StatusRunning)
	update.Phase = models.PhasePtr(phase)
	_, err := o.repo.Update(ctx, jobID, update)
	return err
}

// captionPhase looks up captions one video at a time.
func (o *Orchestrator) captionPhase(ctx context.Context, cfg JobConfig, videos []*models.VideoDescriptor) error {
	for _, v := range videos {
		if err := o.captionLimiter.Wait(ctx); err != nil {
			return err
		}
		if err := o.pipeline.ResolveCaptions(ctx, cfg, v); err != nil {
			return err
		}
	}
	return nil
}

// audioPhase transcribes videos without captions, AudioWorkers at a time.
// Each descriptor is touched by exactly one goroutine.
func (o *Orchestrator) audioPhase(ctx context.Context, cfg JobConfig, videos []*models.VideoDescriptor) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.AudioWorkers)

	for _, v := range videos {
		if v.HasTranscript() {
			continue
		}
		g.Go(func() error {
			return o.pipeline.ResolveAudio(gctx, cfg, v)
		})
	}
	return g.Wait()
}

// summarizePhase summarizes every transcribed video, SummarizeWorkers at
// a time. Each finished summary is published on the job so polling shows
// partial results.
func (o *Orchestrator) summarizePhase(ctx context.Context, jobID string, cfg JobConfig, videos []*models.VideoDescriptor) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.SummarizeWorkers)

	var (
		mu      sync.Mutex
		partial []models.SummaryItem
	)
	for _, v := range videos {
		if !v.HasTranscript() {
			continue
		}
		g.Go(func() error {
			if err := o.summarizeLimiter.Wait(gctx); err != nil {
				return err
			}
			item, err := o.pipeline.Summarize(gctx, cfg, v)
			if err != nil || item == nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			partial = append(partial, *item)
			return o.publish(gctx, jobID, partial)
		})
	}
	return g.Wait()
}

// publish records the summaries finished so far, ordered by video id.
func (o *Orchestrator) publish(ctx context.Context, jobID string, items []models.SummaryItem) error {
	sorted := make([]models.SummaryItem, len(items))
	copy(sorted, items)
	sortItems(sorted)

	_, err := o.repo.Update(ctx, jobID, models.JobUpdate{
		Result: &models.Result{IndividualSummaries: sorted},
	})
	return err
}

func sortItems(items []models.SummaryItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].VideoID < items[j].VideoID })
}

func needsAudio(videos []*models.VideoDescriptor) bool {
	for _, v := range videos {
		if !v.HasTranscript() {
			return true
		}
	}
	return false
}

// collect rebuilds the per-video results from the summary artifacts the
// job produced, ordered by video id.
func (o *Orchestrator) collect(ctx context.Context, cfg JobConfig, videos []*models.VideoDescriptor) ([]models.SummaryItem, []string, error) {
	const op = "Orchestrator.collect"

	prefix := storage.SummariesPrefix(cfg.JobID)
	keys, err := o.store.List(ctx, prefix)
	if err != nil {
		return nil, nil, errors.Internal(op, err, "Failed to list summaries")
	}

	byID := make(map[string]*models.VideoDescriptor, len(videos))
	for _, v := range videos {
		byID[v.VideoID] = v
	}

	items := make([]models.SummaryItem, 0, len(keys))
	for _, key := range keys {
		id := strings.TrimSuffix(strings.TrimPrefix(key, prefix), "_summary.txt")
		v, ok := byID[id]
		if !ok || !v.HasTranscript() {
			continue
		}

		summaryText, err := o.store.Get(ctx, key)
		if err != nil {
			return nil, nil, errors.Internal(op, err, "Failed to read summary")
		}
		transcriptText, err := o.store.Get(ctx, v.TranscriptPath)
		if err != nil {
			return nil, nil, errors.Internal(op, err, "Failed to read transcript")
		}

		items = append(items, *summaryItem(v, string(summaryText), string(transcriptText)))
	}
	sortItems(items)

	summaries := make([]string, len(items))
	for i, item := range items {
		summaries[i] = item.Summary
	}
	return items, summaries, nil
}

// extract produces the cross-video extraction, reusing a stored one.
func (o *Orchestrator) extract(ctx context.Context, cfg JobConfig, summaries []string) (string, error) {
	const op = "Orchestrator.extract"

	if len(summaries) == 0 {
		return "", nil
	}

	key := storage.FinalKey(cfg.JobID)
	existing, err := o.store.Get(ctx, key)
	if err == nil {
		return string(existing), nil
	}
	if !errors.IsNotFound(err) {
		return "", errors.Internal(op, err, "Failed to read final extraction")
	}

	if err := o.summarizeLimiter.Wait(ctx); err != nil {
		return "", err
	}
	final, err := o.pipeline.summarizer.Extract(ctx, summaries)
	if err != nil {
		return "", err
	}
	if err := o.store.Put(ctx, key, []byte(final)); err != nil {
		return "", errors.Internal(op, err, "Failed to store final extraction")
	}
	return final, nil
}

// fail records err on the job. It runs detached from ctx so a cancelled
// or timed out job still gets its terminal status.
func (o *Orchestrator) fail(ctx context.Context, jobID string, err error, log *logrus.Entry) {
	message := errorMessage(err)
	log.WithError(err).Error("Job failed")

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	_, updateErr := o.repo.Update(writeCtx, jobID, models.JobUpdate{
		Status:       models.StatusPtr(models.StatusError),
		ErrorMessage: models.StringPtr(message),
	})
	if updateErr != nil && !stderrors.Is(updateErr, repository.ErrJobFinished) {
		log.WithError(updateErr).Error("Failed to record job failure")
	}
}

func errorMessage(err error) string {
	switch {
	case stderrors.Is(err, context.Canceled):
		return "cancelled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return "job timed out"
	}
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
