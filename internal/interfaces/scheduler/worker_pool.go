package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	jobTracer          = otel.Tracer("gastos/scheduler")
	jobMeter           = otel.Meter("gastos/scheduler")
	jobDuration, _     = jobMeter.Float64Histogram("scheduler.job.duration", metric.WithDescription("Job execution duration in seconds"), metric.WithUnit("s"))
	jobTotal, _        = jobMeter.Int64Counter("scheduler.job.total", metric.WithDescription("Total jobs executed by status"))
	jobQueueDropped, _ = jobMeter.Int64Counter("scheduler.job.queue_dropped", metric.WithDescription("Jobs dropped due to full queue"))
	jobCoalesced, _    = jobMeter.Int64Counter("scheduler.job.coalesced", metric.WithDescription("Refreshes skipped because one was already queued"))
)

// ErrQueueFull is returned by Submit when the job queue has no room.
var ErrQueueFull = errors.New("job queue full")

// ErrPoolClosed is returned by Submit after Shutdown.
var ErrPoolClosed = errors.New("worker pool closed")

// Options configures a WorkerPool. Zero values use the defaults.
type Options struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	JobDelay   time.Duration
	Logger     logrus.FieldLogger
}

// WorkerPool runs jobs on a fixed set of goroutines fed from a bounded queue.
// It also serves as the expense stores' refresh scheduler.
type WorkerPool struct {
	workerCount int
	jobTimeout  time.Duration
	jobDelay    time.Duration
	log         logrus.FieldLogger

	jobs   chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
}

func NewWorkerPool(opts Options) *WorkerPool {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workerCount: opts.Workers,
		jobTimeout:  opts.JobTimeout,
		jobDelay:    opts.JobDelay,
		log:         opts.Logger.WithField("component", "worker_pool"),
		jobs:        make(chan Job, opts.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
		pending:     make(map[string]struct{}),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start() {
	wp.log.WithField("workers", wp.workerCount).Info("Starting worker pool")

	for i := 1; i <= wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	log := wp.log.WithField("worker", id)
	log.Debug("Worker started")

	for {
		select {
		case <-wp.ctx.Done():
			log.Debug("Worker shutting down")
			return

		case job, ok := <-wp.jobs:
			if !ok {
				log.Debug("Job channel closed")
				return
			}

			wp.processJob(id, job)

			if wp.jobDelay > 0 {
				select {
				case <-time.After(wp.jobDelay):
				case <-wp.ctx.Done():
					return
				}
			}
		}
	}
}

// processJob executes a single job with logging and telemetry.
func (wp *WorkerPool) processJob(workerID int, job Job) {
	if rj, ok := job.(*RefreshJob); ok {
		wp.mu.Lock()
		delete(wp.pending, rj.UserID())
		wp.mu.Unlock()
	}

	log := wp.log.WithFields(logrus.Fields{
		"worker":  workerID,
		"job":     job.Description(),
		"user_id": job.UserID(),
	})

	ctx, cancel := context.WithTimeout(wp.ctx, wp.jobTimeout)
	defer cancel()

	ctx, span := jobTracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int("worker.id", workerID),
			attribute.String("job.description", job.Description()),
			attribute.String("job.user_id", job.UserID()),
		),
	)
	defer span.End()

	start := time.Now()
	err := job.Execute(ctx)
	jobDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error")))
		log.WithError(err).Warn("Job failed")
		return
	}

	jobTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	log.WithField("duration", time.Since(start)).Debug("Job completed")
}

// Submit queues job without blocking. It returns ErrQueueFull when the
// queue has no room and ErrPoolClosed after Shutdown.
func (wp *WorkerPool) Submit(job Job) error {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if wp.closed {
		return ErrPoolClosed
	}

	select {
	case wp.jobs <- job:
		return nil
	default:
		jobQueueDropped.Add(context.Background(), 1)
		return fmt.Errorf("%w, dropping job for user %s", ErrQueueFull, job.UserID())
	}
}

// ScheduleRefresh queues a store refresh for userID. A refresh already
// waiting in the queue for the same user absorbs the request.
func (wp *WorkerPool) ScheduleRefresh(userID string, refresh func(ctx context.Context) error) {
	wp.mu.Lock()
	if _, queued := wp.pending[userID]; queued {
		wp.mu.Unlock()
		jobCoalesced.Add(context.Background(), 1)
		return
	}
	wp.pending[userID] = struct{}{}
	wp.mu.Unlock()

	if err := wp.Submit(NewRefreshJob(userID, refresh)); err != nil {
		wp.mu.Lock()
		delete(wp.pending, userID)
		wp.mu.Unlock()
		wp.log.WithError(err).WithField("user_id", userID).Warn("Refresh not scheduled")
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish, up to
// timeout. Jobs still running after that have their context cancelled.
func (wp *WorkerPool) Shutdown(timeout time.Duration) {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	close(wp.jobs)
	wp.mu.Unlock()

	wp.log.WithField("timeout", timeout).Info("Worker pool: initiating graceful shutdown")

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wp.log.Info("Worker pool: all workers finished")
	case <-time.After(timeout):
		wp.log.Warn("Worker pool: timeout reached, cancelling running jobs")
		wp.cancel()
		<-done
	}
	wp.cancel()
}
