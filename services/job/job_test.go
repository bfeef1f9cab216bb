package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/logger"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository/memory"
	"github.com/nijaru/yt-digest/services/search"
)

// blockingRunner finishes jobs with success unless they are cancelled
// while it waits on release.
type blockingRunner struct {
	repo    *memory.Repository
	release chan struct{}
	started chan string
}

func newBlockingRunner(repo *memory.Repository) *blockingRunner {
	return &blockingRunner{
		repo:    repo,
		release: make(chan struct{}),
		started: make(chan string, 10),
	}
}

func (r *blockingRunner) Run(ctx context.Context, job *models.Job) error {
	r.started <- job.ID

	select {
	case <-r.release:
	case <-ctx.Done():
		return ctx.Err()
	}

	_, err := r.repo.Update(ctx, job.ID, models.JobUpdate{
		Status: models.StatusPtr(models.StatusSuccess),
		Phase:  models.PhasePtr(models.PhaseDone),
		Result: &models.Result{FinalContent: "done"},
	})
	return err
}

func newTestService(t *testing.T, runner Runner, repo *memory.Repository, creds CredentialCheck) *Service {
	t.Helper()
	svc := NewService(repo, runner, creds, Config{Workers: 1, QueueSize: 4, JobTimeout: time.Minute}, logger.Discard())
	t.Cleanup(svc.Close)
	return svc
}

func waitForStatus(t *testing.T, svc *Service, id string, want models.Status) *models.JobView {
	t.Helper()
	var view *models.JobView
	require.Eventually(t, func() bool {
		var err error
		view, err = svc.Poll(context.Background(), id)
		return err == nil && view.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return view
}

func TestSubmitAndPoll(t *testing.T) {
	repo := memory.New()
	runner := newBlockingRunner(repo)
	svc := newTestService(t, runner, repo, nil)
	require.NoError(t, svc.Start(context.Background()))

	job, err := svc.Submit(context.Background(), Request{
		URL:     "https://youtu.be/dQw4w9WgXcQ",
		Options: models.Options{Language: "en"},
		Owner:   models.Owner{IPAddress: "192.0.2.1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.StatusStarting, job.Status)

	<-runner.started
	view, err := svc.Poll(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, view.Status.IsTerminal())

	close(runner.release)
	view = waitForStatus(t, svc, job.ID, models.StatusSuccess)
	assert.Equal(t, "done", view.Result.FinalContent)
}

func TestSubmitRequiresCredentials(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, newBlockingRunner(repo), repo, func(needsSearch bool) []string {
		if needsSearch {
			return []string{"YOUTUBE_API_KEY"}
		}
		return nil
	})

	_, err := svc.Submit(context.Background(), Request{Query: "tea"})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "YOUTUBE_API_KEY")
}

func TestSubmitRequiresExactlyOneInput(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, newBlockingRunner(repo), repo, nil)

	_, err := svc.Submit(context.Background(), Request{})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	_, err = svc.Submit(context.Background(), Request{URL: "https://youtu.be/dQw4w9WgXcQ", Query: "tea"})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestPollUnknownJob(t *testing.T) {
	repo := memory.New()
	svc := newTestService(t, newBlockingRunner(repo), repo, nil)

	_, err := svc.Poll(context.Background(), "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestCancelRunningJob(t *testing.T) {
	repo := memory.New()
	runner := newBlockingRunner(repo)
	svc := newTestService(t, runner, repo, nil)
	require.NoError(t, svc.Start(context.Background()))

	job, err := svc.Submit(context.Background(), Request{Query: "tea"})
	require.NoError(t, err)
	<-runner.started

	view, err := svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, view.Status)
	assert.Equal(t, "cancelled", view.ErrorMessage)

	require.Eventually(t, func() bool { return svc.queue.Active() == 0 }, 2*time.Second, 10*time.Millisecond)

	view, err = svc.Poll(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, view.Status)

	_, err = svc.Cancel(context.Background(), job.ID)
	assert.Equal(t, 409, errors.StatusCode(err))
}

func TestSweepStale(t *testing.T) {
	repo := memory.New()
	old := time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(context.Background(), &models.Job{
		ID: "stale", Status: models.StatusRunning, CreatedAt: old, UpdatedAt: old,
	}))
	require.NoError(t, repo.Create(context.Background(), &models.Job{
		ID: "fresh", Status: models.StatusRunning, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))

	svc := newTestService(t, newBlockingRunner(repo), repo, nil)
	require.NoError(t, svc.SweepStale(context.Background()))

	stale, err := repo.Get(context.Background(), "stale")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, stale.Status)
	assert.Equal(t, "job timed out", stale.ErrorMessage)

	fresh, err := repo.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, fresh.Status)
}

// looseStaleRepo lists every job as stale regardless of cutoff.
type looseStaleRepo struct {
	*memory.Repository
	ids []string
}

func (r *looseStaleRepo) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	var jobs []*models.Job
	for _, id := range r.ids {
		job, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func TestSweepStaleRechecksListedJobs(t *testing.T) {
	mem := memory.New()
	require.NoError(t, mem.Create(context.Background(), &models.Job{
		ID: "fresh", Status: models.StatusRunning, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}))
	repo := &looseStaleRepo{Repository: mem, ids: []string{"fresh"}}

	svc := NewService(repo, newBlockingRunner(mem), nil, Config{Workers: 1, QueueSize: 1, JobTimeout: time.Minute}, logger.Discard())
	t.Cleanup(svc.Close)
	require.NoError(t, svc.SweepStale(context.Background()))

	fresh, err := mem.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, fresh.Status)
}

func TestQueueActiveTracksJobs(t *testing.T) {
	q := NewQueue(1, 2, 0, 0, logger.Discard())
	defer q.Close()

	assert.Equal(t, 0, q.Active())
	require.NoError(t, q.Submit(&models.Job{ID: "a"}))
	require.NoError(t, q.Submit(&models.Job{ID: "b"}))
	assert.Equal(t, 2, q.Active())
}

func TestRunIsSynchronous(t *testing.T) {
	repo := memory.New()
	runner := newBlockingRunner(repo)
	close(runner.release)
	svc := newTestService(t, runner, repo, nil)

	view, err := svc.Run(context.Background(), Request{URL: "https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, view.Status)
}

func TestQueueFull(t *testing.T) {
	q := NewQueue(1, 1, 0, 0, logger.Discard())
	defer q.Close()

	require.NoError(t, q.Submit(&models.Job{ID: "a"}))
	assert.ErrorIs(t, q.Submit(&models.Job{ID: "b"}), ErrQueueFull)
	assert.True(t, q.Cancel("a"))
	assert.False(t, q.Cancel("b"))
}

type fakeSearcher struct {
	videos []search.Video
	mode   models.SearchMode
}

func (f *fakeSearcher) Search(ctx context.Context, query, language string, mode models.SearchMode) ([]search.Video, error) {
	f.mode = mode
	return f.videos, nil
}

func TestListerSingleURL(t *testing.T) {
	videos, err := NewLister(nil).Videos(context.Background(), &models.Job{
		VideoURL:   "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		VideoTitle: "Given title",
		Options:    models.Options{Language: "ja"},
	})
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "dQw4w9WgXcQ", videos[0].VideoID)
	assert.Equal(t, "Given title", videos[0].Title)
	assert.Equal(t, "ja", videos[0].QueryLang)
}

func TestListerQuery(t *testing.T) {
	searcher := &fakeSearcher{videos: []search.Video{
		{ID: "aaaaaaaaaaa", Title: "A", Language: "zh-TW"},
		{ID: "bbbbbbbbbbb", Title: "B", Language: "en"},
	}}

	videos, err := NewLister(searcher).Videos(context.Background(), &models.Job{
		Query:   "tea",
		Options: models.Options{Language: "en", SearchMode: models.SearchDivergent},
	})
	require.NoError(t, err)
	require.Len(t, videos, 2)
	assert.Equal(t, models.SearchDivergent, searcher.mode)
	assert.Equal(t, "zh-TW", videos[0].QueryLang)
	assert.Equal(t, "https://www.youtube.com/watch?v=bbbbbbbbbbb", videos[1].URL)
}

func TestListerWithoutSearcher(t *testing.T) {
	_, err := NewLister(nil).Videos(context.Background(), &models.Job{Query: "tea"})
	assert.True(t, errors.IsConfiguration(err))
}
