package postgres

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nijaru/yt-digest/config"
	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
    id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    phase TEXT NOT NULL DEFAULT '',
    user_id TEXT NOT NULL DEFAULT '',
    ip_address TEXT NOT NULL DEFAULT '',
    query TEXT NOT NULL DEFAULT '',
    video_title TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    options JSONB NOT NULL,
    result JSONB,
    error_message TEXT NOT NULL DEFAULT '',
    warning TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_updated ON jobs(updated_at);
`

const jobColumns = `id, status, phase, user_id, ip_address, query, video_title, video_url,
    options, result, error_message, warning, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Repository, error) {
	const op = "postgres.Open"

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Configuration(op, err, "invalid DATABASE_URL")
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Internal(op, err, "failed to ping database")
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, errors.Internal(op, err, "failed to apply schema")
	}

	return &Repository{pool: pool, now: time.Now}, nil
}

func (r *Repository) Create(ctx context.Context, job *models.Job) error {
	const op = "PostgresRepository.Create"

	row, err := repository.EncodeRow(job)
	if err != nil {
		return errors.Internal(op, err, "failed to encode job")
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		job.ID,
		string(job.Status),
		string(job.Phase),
		job.Owner.UserID,
		job.Owner.IPAddress,
		job.Query,
		job.VideoTitle,
		job.VideoURL,
		string(row.Options),
		nullableJSON(row.Result),
		job.ErrorMessage,
		job.Warning,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return errors.Internal(op, err, "Failed to save job")
	}
	return nil
}

// Update locks the row so a concurrent cancel and orchestrator write
// cannot both pass the terminal check.
func (r *Repository) Update(ctx context.Context, id string, update models.JobUpdate) (*models.Job, error) {
	const op = "PostgresRepository.Update"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	job, err := scanJob(tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1 FOR UPDATE`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, repository.JobNotFound(op)
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query job")
	}

	if err := repository.ApplyUpdate(op, job, update, r.now()); err != nil {
		return nil, err
	}

	row, err := repository.EncodeRow(job)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to encode job")
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs SET status = $1, phase = $2, video_title = $3, result = $4,
		       error_message = $5, warning = $6, updated_at = $7
		WHERE id = $8`,
		string(job.Status),
		string(job.Phase),
		job.VideoTitle,
		nullableJSON(row.Result),
		job.ErrorMessage,
		job.Warning,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to update job")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Internal(op, err, "failed to commit transaction")
	}
	return job, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Job, error) {
	const op = "PostgresRepository.Get"

	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, repository.JobNotFound(op)
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query job")
	}
	return job, nil
}

func (r *Repository) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	const op = "PostgresRepository.ListStale"

	rows, err := r.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status IN ($1, $2) AND updated_at < $3`,
		string(models.StatusStarting), string(models.StatusRunning), cutoff)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query stale jobs")
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Internal(op, err, "Failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate jobs")
	}
	return jobs, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func scanJob(row pgx.Row) (*models.Job, error) {
	job := &models.Job{}
	var status, phase string
	var options, result []byte

	err := row.Scan(
		&job.ID,
		&status,
		&phase,
		&job.Owner.UserID,
		&job.Owner.IPAddress,
		&job.Query,
		&job.VideoTitle,
		&job.VideoURL,
		&options,
		&result,
		&job.ErrorMessage,
		&job.Warning,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = models.Status(status)
	job.Phase = models.Phase(phase)
	if err := repository.DecodeRow(job, repository.Row{Options: options, Result: result}); err != nil {
		return nil, err
	}
	return job, nil
}

func nullableJSON(b []byte) *string {
	if b == nil {
		return nil
	}
	s := string(b)
	return &s
}
