package job

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-digest/errors"
	"github.com/nijaru/yt-digest/models"
)

var ErrQueueFull = stderrors.New("job queue is full")

type ProcessFunc func(ctx context.Context, job *models.Job) error

// Queue runs jobs on a fixed set of workers. Each job gets its own
// cancellable context derived from the queue's root context.
type Queue struct {
	jobs        chan *queuedJob
	activeJobs  map[string]*queuedJob
	workerCount int
	timeout     time.Duration
	hungAfter   time.Duration
	mu          sync.Mutex
	wg          sync.WaitGroup
	root        context.Context
	stop        context.CancelFunc
	logger      *logrus.Logger
}

type queuedJob struct {
	job        *models.Job
	ctx        context.Context
	cancelFunc context.CancelFunc
	queuedAt   time.Time
	startTime  time.Time
}

// NewQueue creates a queue. timeout bounds each job's run; hungAfter is
// when the monitor starts warning about a running job.
func NewQueue(workerCount, maxQueueSize int, timeout, hungAfter time.Duration, logger *logrus.Logger) *Queue {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if workerCount < 1 {
		workerCount = 1
	}
	if maxQueueSize < 1 {
		maxQueueSize = 1
	}

	root, stop := context.WithCancel(context.Background())
	return &Queue{
		jobs:        make(chan *queuedJob, maxQueueSize),
		activeJobs:  make(map[string]*queuedJob),
		workerCount: workerCount,
		timeout:     timeout,
		hungAfter:   hungAfter,
		root:        root,
		stop:        stop,
		logger:      logger,
	}
}

// Start begins processing jobs
func (q *Queue) Start(process ProcessFunc) {
	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(i, process)
	}

	if q.hungAfter > 0 {
		q.wg.Add(1)
		go q.monitorHungJobs()
	}
}

// Submit queues job without blocking.
func (q *Queue) Submit(job *models.Job) error {
	ctx, cancel := context.WithCancel(q.root)
	qj := &queuedJob{
		job:        job,
		ctx:        ctx,
		cancelFunc: cancel,
		queuedAt:   time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case q.jobs <- qj:
		q.activeJobs[job.ID] = qj
		return nil
	default:
		cancel()
		return ErrQueueFull
	}
}

// Cancel cancels a queued or running job. It reports whether the job was
// known to the queue.
func (q *Queue) Cancel(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	qj, exists := q.activeJobs[jobID]
	if !exists {
		return false
	}
	qj.cancelFunc()
	return true
}

func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.activeJobs)
}

func (q *Queue) worker(id int, process ProcessFunc) {
	defer q.wg.Done()

	log := q.logger.WithField("worker_id", id)
	log.Debug("Starting worker")

	for {
		var qj *queuedJob
		select {
		case <-q.root.Done():
			log.Debug("Worker shutting down")
			return
		case qj = <-q.jobs:
		}

		q.run(log, qj, process)
	}
}

func (q *Queue) run(log *logrus.Entry, qj *queuedJob, process ProcessFunc) {
	log = log.WithField("job_id", qj.job.ID)

	q.mu.Lock()
	qj.startTime = time.Now()
	q.mu.Unlock()

	ctx := qj.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	log.WithField("waited", qj.startTime.Sub(qj.queuedAt)).Info("Started processing job")
	err := process(ctx, qj.job)
	duration := time.Since(qj.startTime)

	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"duration":   duration,
			"error_kind": errors.KindOf(err),
		}).Error("Job processing failed")
	} else {
		log.WithField("duration", duration).Info("Job processing succeeded")
	}

	q.mu.Lock()
	delete(q.activeJobs, qj.job.ID)
	q.mu.Unlock()
	qj.cancelFunc()
}

// Close cancels every queued and running job and waits for the workers.
func (q *Queue) Close() {
	q.mu.Lock()
	for _, qj := range q.activeJobs {
		qj.cancelFunc()
	}
	q.mu.Unlock()

	q.stop()
	q.wg.Wait()
}

func (q *Queue) monitorHungJobs() {
	defer q.wg.Done()

	interval := q.hungAfter / 6
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.root.Done():
			return
		case <-ticker.C:
			q.checkHungJobs()
		}
	}
}

// checkHungJobs logs jobs that have been running too long. The job
// timeout does the cancelling.
func (q *Queue) checkHungJobs() {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	for id, qj := range q.activeJobs {
		if qj.startTime.IsZero() {
			continue
		}
		if running := now.Sub(qj.startTime); running > q.hungAfter {
			q.logger.WithFields(logrus.Fields{
				"job_id":   id,
				"duration": running,
			}).Warn("Found hung job")
		}
	}
}
