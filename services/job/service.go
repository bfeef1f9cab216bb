package job

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository"
)

// Runner drives one job to a terminal status.
type Runner interface {
	Run(ctx context.Context, job *models.Job) error
}

// CredentialCheck lists missing credentials for a job.
type CredentialCheck func(needsSearch bool) []string

type Config struct {
	Workers   int
	QueueSize int
	// JobTimeout bounds a run. Jobs left non-terminal for longer are
	// swept to error at startup.
	JobTimeout time.Duration
}

// Request is a validated submission.
type Request struct {
	URL     string
	Query   string
	Title   string
	Options models.Options
	Owner   models.Owner
}

type Service struct {
	repo        repository.JobRepository
	runner      Runner
	queue       *Queue
	credentials CredentialCheck
	config      Config
	logger      *logrus.Logger
	now         func() time.Time
}

func NewService(
	repo repository.JobRepository,
	runner Runner,
	credentials CredentialCheck,
	cfg Config,
	logger *logrus.Logger,
) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		repo:        repo,
		runner:      runner,
		queue:       NewQueue(cfg.Workers, cfg.QueueSize, cfg.JobTimeout, cfg.JobTimeout/2, logger),
		credentials: credentials,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// Start sweeps jobs a previous process left behind and starts the workers.
func (s *Service) Start(ctx context.Context) error {
	if err := s.SweepStale(ctx); err != nil {
		return err
	}
	s.queue.Start(s.runner.Run)
	return nil
}

// SweepStale moves non-terminal jobs older than the job timeout to error.
func (s *Service) SweepStale(ctx context.Context) error {
	if s.config.JobTimeout <= 0 {
		return nil
	}

	now := s.now()
	stale, err := s.repo.ListStale(ctx, now.Add(-s.config.JobTimeout))
	if err != nil {
		return err
	}

	for _, job := range stale {
		if !job.IsStale(now, s.config.JobTimeout) {
			continue
		}
		_, err := s.repo.Update(ctx, job.ID, models.JobUpdate{
			Status:       models.StatusPtr(models.StatusError),
			ErrorMessage: models.StringPtr("job timed out"),
		})
		if err != nil && !stderrors.Is(err, repository.ErrJobFinished) {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"updated_at": job.UpdatedAt,
		}).Warn("Swept stale job")
	}
	return nil
}

// Submit records a new job and queues it. The job runs in the background;
// callers poll for its status.
func (s *Service) Submit(ctx context.Context, req Request) (*models.Job, error) {
	const op = "JobService.Submit"

	job, err := s.create(ctx, op, req)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"url":    job.VideoURL,
		"query":  job.Query,
	})

	if err := s.queue.Submit(job); err != nil {
		message := "Server is busy, try again later"
		if _, updateErr := s.repo.Update(ctx, job.ID, models.JobUpdate{
			Status:       models.StatusPtr(models.StatusError),
			ErrorMessage: models.StringPtr(message),
		}); updateErr != nil {
			log.WithError(updateErr).Error("Failed to record rejected job")
		}
		return nil, errors.Transient(op, err, message)
	}

	log.WithField("active_jobs", s.queue.Active()).Info("Job queued")
	return job, nil
}

// create checks req and records a starting job for it. Configuration
// errors surface here, before anything is queued.
func (s *Service) create(ctx context.Context, op string, req Request) (*models.Job, error) {
	if (req.URL == "") == (req.Query == "") {
		return nil, errors.InvalidInput(op, nil, "Exactly one of url or query is required")
	}

	if s.credentials != nil {
		if missing := s.credentials(req.Query != ""); len(missing) > 0 {
			return nil, errors.Configuration(op, nil, "Missing credentials: "+strings.Join(missing, ", "))
		}
	}

	now := s.now()
	job := &models.Job{
		ID:         uuid.New().String(),
		Status:     models.StatusStarting,
		Owner:      req.Owner,
		Query:      req.Query,
		VideoURL:   req.URL,
		VideoTitle: req.Title,
		Options:    req.Options,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Poll returns the client view of a job.
func (s *Service) Poll(ctx context.Context, id string) (*models.JobView, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return models.NewJobView(job), nil
}

// Cancel marks a job cancelled and stops its run. Cancelling a finished
// job is a conflict.
func (s *Service) Cancel(ctx context.Context, id string) (*models.JobView, error) {
	job, err := s.repo.Update(ctx, id, models.JobUpdate{
		Status:       models.StatusPtr(models.StatusError),
		ErrorMessage: models.StringPtr("cancelled"),
	})
	if err != nil {
		return nil, err
	}

	running := s.queue.Cancel(id)
	s.logger.WithFields(logrus.Fields{
		"job_id":  id,
		"running": running,
	}).Info("Job cancelled")
	return models.NewJobView(job), nil
}

// Run executes a job synchronously, bypassing the queue.
func (s *Service) Run(ctx context.Context, req Request) (*models.JobView, error) {
	const op = "JobService.Run"

	job, err := s.create(ctx, op, req)
	if err != nil {
		return nil, err
	}

	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}
	_ = s.runner.Run(ctx, job)

	return s.Poll(context.WithoutCancel(ctx), job.ID)
}

// Close stops the workers and cancels running jobs.
func (s *Service) Close() {
	s.queue.Close()
}
