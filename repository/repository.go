package repository

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
)

// ErrJobFinished is returned by Update when the job already reached a
// terminal status.
var ErrJobFinished = stderrors.New("job already finished")

// JobRepository persists jobs. Readers may run concurrently; each job id
// has a single writer (its orchestrator), so Update is last-write-wins
// apart from terminal statuses, which never change.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	Update(ctx context.Context, id string, update models.JobUpdate) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	// ListStale returns non-terminal jobs last updated before cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]*models.Job, error)
	Close() error
}

// ApplyUpdate validates update against job's current status and applies
// it. Every backend funnels writes through here.
func ApplyUpdate(op string, job *models.Job, update models.JobUpdate, now time.Time) error {
	if job.IsTerminal() {
		return errors.E(errors.KindInvalidInput, http.StatusConflict, op, ErrJobFinished,
			"job already finished")
	}
	if update.Status != nil && !models.CanTransition(job.Status, *update.Status) {
		return errors.E(errors.KindInvalidInput, http.StatusConflict, op, nil,
			"invalid status transition from "+string(job.Status)+" to "+string(*update.Status))
	}
	job.Apply(update, now)
	return nil
}

// JobNotFound is the error every backend returns for an unknown id.
func JobNotFound(op string) error {
	return errors.NotFound(op, nil, "Job not found")
}

// Row is the column encoding shared by the SQL backends.
type Row struct {
	Options []byte
	Result  []byte
}

func EncodeRow(job *models.Job) (Row, error) {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return Row{}, err
	}
	var result []byte
	if job.Result != nil {
		if result, err = json.Marshal(job.Result); err != nil {
			return Row{}, err
		}
	}
	return Row{Options: options, Result: result}, nil
}

func DecodeRow(job *models.Job, row Row) error {
	if len(row.Options) > 0 {
		if err := json.Unmarshal(row.Options, &job.Options); err != nil {
			return err
		}
	}
	job.Result = nil
	if len(row.Result) > 0 {
		job.Result = &models.Result{}
		if err := json.Unmarshal(row.Result, job.Result); err != nil {
			return err
		}
	}
	return nil
}
