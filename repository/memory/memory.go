package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository"
)

// Repository keeps jobs in a map. It backs tests and one-shot CLI runs.
type Repository struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
	now  func() time.Time
}

func New() *Repository {
	return &Repository{
		jobs: make(map[string]*models.Job),
		now:  time.Now,
	}
}

func (r *Repository) Create(ctx context.Context, job *models.Job) error {
	const op = "MemoryRepository.Create"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return errors.InvalidInput(op, nil, "job already exists")
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *Repository) Update(ctx context.Context, id string, update models.JobUpdate) (*models.Job, error) {
	const op = "MemoryRepository.Update"

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.JobNotFound(op)
	}
	if err := repository.ApplyUpdate(op, job, update, r.now()); err != nil {
		return nil, err
	}
	return cloneJob(job), nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Job, error) {
	const op = "MemoryRepository.Get"

	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, repository.JobNotFound(op)
	}
	return cloneJob(job), nil
}

func (r *Repository) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stale []*models.Job
	for _, job := range r.jobs {
		if !job.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			stale = append(stale, cloneJob(job))
		}
	}
	return stale, nil
}

func (r *Repository) Close() error { return nil }

// cloneJob copies the job so callers never share the stored result slice.
func cloneJob(job *models.Job) *models.Job {
	c := *job
	if job.Result != nil {
		result := *job.Result
		result.IndividualSummaries = append([]models.SummaryItem(nil), job.Result.IndividualSummaries...)
		c.Result = &result
	}
	return &c
}
