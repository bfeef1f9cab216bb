package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
	"github.com/nijaru/yt-digest/repository"
)

const (
	jobColumns = `id, status, phase, user_id, ip_address, query, video_title, video_url,
               options, result, error_message, warning, created_at, updated_at`

	insertJobQuery = `
        INSERT INTO jobs (` + jobColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	getJobQuery = `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

	updateJobQuery = `
        UPDATE jobs SET
            status = ?,
            phase = ?,
            video_title = ?,
            result = ?,
            error_message = ?,
            warning = ?,
            updated_at = ?
        WHERE id = ?
    `

	staleJobsQuery = `
        SELECT ` + jobColumns + ` FROM jobs
        WHERE status IN (?, ?) AND updated_at < ?
    `
)

type Repository struct {
	db     *sql.DB
	config DBConfig
	now    func() time.Time
}

func NewRepository(db *sql.DB, dbConfig DBConfig) *Repository {
	return &Repository{db: db, config: dbConfig, now: time.Now}
}

// Open initialises the database at path and returns a repository over it.
func Open(path string, dbConfig DBConfig) (*Repository, error) {
	db, err := InitDB(path, dbConfig)
	if err != nil {
		return nil, err
	}
	return NewRepository(db, dbConfig), nil
}

func (r *Repository) Create(ctx context.Context, job *models.Job) error {
	const op = "SQLiteRepository.Create"

	row, err := repository.EncodeRow(job)
	if err != nil {
		return errors.Internal(op, err, "failed to encode job")
	}

	err = withLockRetry(ctx, r.config, func() error {
		_, err := r.db.ExecContext(ctx, insertJobQuery,
			job.ID,
			string(job.Status),
			string(job.Phase),
			job.Owner.UserID,
			job.Owner.IPAddress,
			job.Query,
			job.VideoTitle,
			job.VideoURL,
			string(row.Options),
			nullString(row.Result),
			job.ErrorMessage,
			job.Warning,
			job.CreatedAt.UTC(),
			job.UpdatedAt.UTC(),
		)
		return err
	})
	if err != nil {
		return errors.Internal(op, err, "Failed to save job")
	}
	return nil
}

func (r *Repository) Update(ctx context.Context, id string, update models.JobUpdate) (*models.Job, error) {
	const op = "SQLiteRepository.Update"

	var updated *models.Job
	err := withLockRetry(ctx, r.config, func() error {
		return WithTransaction(ctx, r.db, func(tx Executor) error {
			job, err := scanJob(tx.QueryRowContext(ctx, getJobQuery, id))
			if err != nil {
				return err
			}
			if err := repository.ApplyUpdate(op, job, update, r.now().UTC()); err != nil {
				return err
			}

			row, err := repository.EncodeRow(job)
			if err != nil {
				return errors.Internal(op, err, "failed to encode job")
			}

			_, err = tx.ExecContext(ctx, updateJobQuery,
				string(job.Status),
				string(job.Phase),
				job.VideoTitle,
				nullString(row.Result),
				job.ErrorMessage,
				job.Warning,
				job.UpdatedAt,
				job.ID,
			)
			if err != nil {
				return err
			}
			updated = job
			return nil
		})
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, repository.JobNotFound(op)
		}
		var appErr *errors.AppError
		if stderrors.As(err, &appErr) {
			return nil, err
		}
		return nil, errors.Internal(op, err, "Failed to update job")
	}
	return updated, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Job, error) {
	const op = "SQLiteRepository.Get"

	job, err := scanJob(r.db.QueryRowContext(ctx, getJobQuery, id))
	if err == sql.ErrNoRows {
		return nil, repository.JobNotFound(op)
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to query job")
	}
	return job, nil
}

func (r *Repository) ListStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error) {
	const op = "SQLiteRepository.ListStale"

	rows, err := r.db.QueryContext(ctx, staleJobsQuery,
		string(models.StatusStarting), string(models.StatusRunning), cutoff.UTC())
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
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*models.Job, error) {
	job := &models.Job{}
	var status, phase, options string
	var result sql.NullString

	err := s.Scan(
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
	row := repository.Row{Options: []byte(options)}
	if result.Valid {
		row.Result = []byte(result.String)
	}
	if err := repository.DecodeRow(job, row); err != nil {
		return nil, err
	}
	return job, nil
}

func nullString(b []byte) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
