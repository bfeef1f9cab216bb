// Package repotest holds the behaviour every JobRepository backend must
// share, run from each backend's tests.
package repotest

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository"
)

func NewJob(id string) *models.Job {
	now := time.Now().UTC().Truncate(time.Second)
	return &models.Job{
		ID:        id,
		Status:    models.StatusStarting,
		Phase:     models.PhaseInit,
		Owner:     models.Owner{IPAddress: "10.0.0.1"},
		Query:     "kubernetes operators",
		Options:   models.Options{Language: "en", ProcessAudio: true, SearchMode: models.SearchFocused},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func Run(t *testing.T, newRepo func(t *testing.T) repository.JobRepository) {
	t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newRepo(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("UpdateLifecycle", func(t *testing.T) { testUpdateLifecycle(t, newRepo(t)) })
	t.Run("TerminalIsSticky", func(t *testing.T) { testTerminalIsSticky(t, newRepo(t)) })
	t.Run("ListStale", func(t *testing.T) { testListStale(t, newRepo(t)) })
	t.Run("ConcurrentReaders", func(t *testing.T) { testConcurrentReaders(t, newRepo(t)) })
}

func testCreateGet(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	job := NewJob("job-1")
	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusStarting, got.Status)
	assert.Equal(t, "kubernetes operators", got.Query)
	assert.Equal(t, job.Options, got.Options)
	assert.Equal(t, "10.0.0.1", got.Owner.IPAddress)
	assert.Nil(t, got.Result)
}

func testGetMissing(t *testing.T, repo repository.JobRepository) {
	_, err := repo.Get(context.Background(), "nope")
	assert.True(t, errors.IsNotFound(err), "expected not found, got %v", err)

	_, err = repo.Update(context.Background(), "nope", models.JobUpdate{Phase: models.PhasePtr(models.PhaseAudio)})
	assert.True(t, errors.IsNotFound(err), "expected not found, got %v", err)
}

func testUpdateLifecycle(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, NewJob("job-2")))

	got, err := repo.Update(ctx, "job-2", models.JobUpdate{
		Status: models.StatusPtr(models.StatusRunning),
		Phase:  models.PhasePtr(models.PhaseCaptions),
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, got.Status)

	result := &models.Result{
		FinalContent: "synthesis",
		IndividualSummaries: []models.SummaryItem{
			{VideoID: "a", Title: "A", URL: "https://youtu.be/a", Summary: "sa", FullTranscript: "ta"},
		},
	}
	_, err = repo.Update(ctx, "job-2", models.JobUpdate{
		Status:  models.StatusPtr(models.StatusSuccess),
		Phase:   models.PhasePtr(models.PhaseDone),
		Result:  result,
		Warning: models.StringPtr("Expected 2 summaries, got 1"),
	})
	require.NoError(t, err)

	got, err = repo.Get(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.Status)
	assert.Equal(t, models.PhaseDone, got.Phase)
	assert.Equal(t, "Expected 2 summaries, got 1", got.Warning)
	require.NotNil(t, got.Result)
	assert.Equal(t, *result, *got.Result)
}

func testTerminalIsSticky(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, NewJob("job-3")))

	_, err := repo.Update(ctx, "job-3", models.JobUpdate{
		Status:       models.StatusPtr(models.StatusError),
		ErrorMessage: models.StringPtr("cancelled"),
	})
	require.NoError(t, err)

	_, err = repo.Update(ctx, "job-3", models.JobUpdate{Status: models.StatusPtr(models.StatusSuccess)})
	assert.True(t, stderrors.Is(err, repository.ErrJobFinished), "expected ErrJobFinished, got %v", err)

	got, err := repo.Get(ctx, "job-3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, got.Status)
	assert.Equal(t, "cancelled", got.ErrorMessage)
}

func testListStale(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()

	old := NewJob("old")
	old.UpdatedAt = old.UpdatedAt.Add(-3 * time.Hour)
	require.NoError(t, repo.Create(ctx, old))

	done := NewJob("done")
	done.Status = models.StatusSuccess
	done.UpdatedAt = done.UpdatedAt.Add(-3 * time.Hour)
	require.NoError(t, repo.Create(ctx, done))

	require.NoError(t, repo.Create(ctx, NewJob("fresh")))

	stale, err := repo.ListStale(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}

func testConcurrentReaders(t *testing.T, repo repository.JobRepository) {
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, NewJob("job-4")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				job, err := repo.Get(ctx, "job-4")
				if assert.NoError(t, err) {
					assert.Equal(t, "job-4", job.ID)
				}
			}
		}()
	}

	phases := []models.Phase{models.PhaseCaptions, models.PhaseAudio, models.PhaseSummarize}
	for _, phase := range phases {
		_, err := repo.Update(ctx, "job-4", models.JobUpdate{
			Status: models.StatusPtr(models.StatusRunning),
			Phase:  models.PhasePtr(phase),
		})
		require.NoError(t, err)
	}
	wg.Wait()

	got, err := repo.Get(ctx, "job-4")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseSummarize, got.Phase)
}
