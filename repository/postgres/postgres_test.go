package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository"
	"github.com/nijaru/yt-digest/repository/repotest"
)

// Set TEST_DATABASE_URL to run these against a real server.
func TestRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	repotest.Run(t, func(t *testing.T) repository.JobRepository {
		repo, err := Open(context.Background(), config.DatabaseConfig{DSN: dsn, MaxConnections: 4})
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() {
			repo.pool.Exec(context.Background(), "TRUNCATE jobs")
			repo.Close()
		})
		return &prefixed{Repository: repo, prefix: uuid.NewString() + "-"}
	})
}

// prefixed keeps ids unique when tests share one database.
type prefixed struct {
	*Repository
	prefix string
}

func (p *prefixed) Create(ctx context.Context, job *models.Job) error {
	c := *job
	c.ID = p.prefix + job.ID
	return p.Repository.Create(ctx, &c)
}

func (p *prefixed) Update(ctx context.Context, id string, update models.JobUpdate) (*models.Job, error) {
	job, err := p.Repository.Update(ctx, p.prefix+id, update)
	return p.strip(job), err
}

func (p *prefixed) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := p.Repository.Get(ctx, p.prefix+id)
	return p.strip(job), err
}

func (p *prefixed) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	jobs, err := p.Repository.ListStale(ctx, cutoff)
	var own []*models.Job
	for _, job := range jobs {
		if strings.HasPrefix(job.ID, p.prefix) {
			own = append(own, p.strip(job))
		}
	}
	return own, err
}

func (p *prefixed) strip(job *models.Job) *models.Job {
	if job != nil {
		job.ID = job.ID[len(p.prefix):]
	}
	return job
}
