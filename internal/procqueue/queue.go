package procqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/config"
	"inkwell/internal/logging"
)

// Status describes a job's position in its lifecycle. Transitions are
// monotonic: pending, then processing, then exactly one of completed or
// failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job is one unit of work: a path that passed stability detection.
type Job struct {
	ID          string
	Path        string
	Status      Status
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Err         string
}

// Handler processes one stable path. A nil return marks the job completed;
// any error marks it failed. Retry and quarantine decisions belong to the
// handler, not the queue.
type Handler func(ctx context.Context, job *Job) error

// Stats is a point-in-time snapshot of queue occupancy.
type Stats struct {
	Pending    int
	Processing int
	Completed  int
	Failed     int
	Capacity   int
	Workers    int
}

// Queue owns a bounded channel of jobs and a fixed pool of workers.
type Queue struct {
	handler      Handler
	logger       *slog.Logger
	maxSize      int
	workers      int
	retained     int
	drainTimeout time.Duration

	mu         sync.Mutex
	live       map[string]*Job // keyed by path, pending or processing
	terminal   []*Job          // most recent last
	processing int
	completed  int
	failed     int
	accepting  bool

	jobs   chan *Job
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a queue from configuration. Start must be called before Submit
// accepts work.
func New(cfg *config.Config, handler Handler, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Queue{
		handler:      handler,
		logger:       logger,
		maxSize:      cfg.Queue.MaxSize,
		workers:      cfg.Queue.MaxWorkers,
		retained:     cfg.Queue.RetainedJobs,
		drainTimeout: time.Duration(cfg.Queue.DrainTimeoutSeconds) * time.Second,
		live:         make(map[string]*Job),
		jobs:         make(chan *Job, cfg.Queue.MaxSize),
	}
}

// Start launches the worker pool. Workers run until Shutdown.
func (q *Queue) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)

	q.mu.Lock()
	q.cancel = cancel
	q.accepting = true
	q.mu.Unlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(runCtx, i)
	}
	q.logger.Info("queue started",
		logging.Int("workers", q.workers),
		logging.Int("capacity", q.maxSize))
}

// Submit offers a path to the queue. It returns false, without blocking,
// when the queue is full, the path already has a live job, or the queue is
// shutting down. Callers treat a rejected submission as "try again on the
// next observation".
func (q *Queue) Submit(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.accepting {
		return false
	}
	if _, exists := q.live[path]; exists {
		q.logger.Debug("duplicate submission ignored", logging.String("path", path))
		return false
	}

	job := &Job{
		ID:          uuid.NewString(),
		Path:        path,
		Status:      StatusPending,
		SubmittedAt: time.Now(),
	}

	select {
	case q.jobs <- job:
		q.live[path] = job
		q.logger.Info("job enqueued",
			logging.String("job_id", job.ID),
			logging.String("path", path))
		return true
	default:
		q.logger.Warn("queue full, submission rejected",
			logging.String("path", path),
			logging.Int("capacity", q.maxSize))
		return false
	}
}

// Shutdown stops accepting work, waits up to the configured drain timeout
// for in-flight jobs, then cancels the workers' context.
func (q *Queue) Shutdown() error {
	q.mu.Lock()
	if !q.accepting {
		q.mu.Unlock()
		return nil
	}
	q.accepting = false
	cancel := q.cancel
	q.mu.Unlock()

	close(q.jobs)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("queue drained")
		return nil
	case <-time.After(q.drainTimeout):
		cancel()
		<-done
		return fmt.Errorf("queue drain exceeded %s, in-flight jobs cancelled", q.drainTimeout)
	}
}

// Active reports whether path currently has a pending or processing job.
func (q *Queue) Active(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.live[path]
	return ok
}

// Stats snapshots queue occupancy for health reporting.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := 0
	for _, job := range q.live {
		if job.Status == StatusPending {
			pending++
		}
	}
	return Stats{
		Pending:    pending,
		Processing: q.processing,
		Completed:  q.completed,
		Failed:     q.failed,
		Capacity:   q.maxSize,
		Workers:    q.workers,
	}
}

// Recent returns retained terminal jobs, most recent last.
func (q *Queue) Recent() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, len(q.terminal))
	copy(out, q.terminal)
	return out
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for job := range q.jobs {
		if ctx.Err() != nil {
			q.finish(job, fmt.Errorf("shutdown before processing: %w", ctx.Err()))
			continue
		}
		q.begin(job)
		err := q.run(ctx, job)
		q.finish(job, err)
	}
	q.logger.Debug("worker exiting", logging.Int("worker", id))
}

func (q *Queue) run(ctx context.Context, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler(ctx, job)
}

func (q *Queue) begin(job *Job) {
	q.mu.Lock()
	job.Status = StatusProcessing
	job.StartedAt = time.Now()
	q.processing++
	q.mu.Unlock()
	q.logger.Info("job started",
		logging.String("job_id", job.ID),
		logging.String("path", job.Path))
}

func (q *Queue) finish(job *Job, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.Status == StatusProcessing {
		q.processing--
	}
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = StatusFailed
		job.Err = err.Error()
		q.failed++
	} else {
		job.Status = StatusCompleted
		q.completed++
	}

	delete(q.live, job.Path)
	q.terminal = append(q.terminal, job)
	if len(q.terminal) > q.retained {
		q.terminal = q.terminal[len(q.terminal)-q.retained:]
	}

	if err != nil {
		q.logger.Warn("job failed",
			logging.String("job_id", job.ID),
			logging.String("path", job.Path),
			logging.Error(err))
		return
	}
	q.logger.Info("job completed",
		logging.String("job_id", job.ID),
		logging.String("path", job.Path),
		logging.Duration("elapsed", job.FinishedAt.Sub(job.StartedAt)))
}
