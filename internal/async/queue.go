package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/gauge-tracker/internal/common"
	"github.com/joseph-ayodele/gauge-tracker/internal/metrics"
	"github.com/joseph-ayodele/gauge-tracker/internal/pipeline"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one photo to process.
type Job struct {
	Path        string
	Force       bool // process even if the same content was already stored
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Handler receives every finished outcome, e.g. to store it.
type Handler func(ctx context.Context, job Job, out pipeline.Outcome)

// SkipFunc reports whether a job can be dropped before processing.
type SkipFunc func(ctx context.Context, job Job) (bool, error)

type ProcessorQueue struct {
	proc    pipeline.PhotoProcessor
	handle  Handler
	skip    SkipFunc
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithHandler(h Handler) Option {
	return func(q *ProcessorQueue) { q.handle = h }
}

func WithSkip(s SkipFunc) Option {
	return func(q *ProcessorQueue) { q.skip = s }
}

func NewProcessorQueue(proc pipeline.PhotoProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := range q.workers {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("worker started", "worker_id", workerID)
				for job := range q.ch {
					metrics.QueueDepth.Dec()
					q.run(workerID, job)
				}
				q.logger.Debug("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	if q.skip != nil && !job.Force {
		skip, err := q.skip(ctx, job)
		if err != nil {
			q.logger.Warn("skip check failed, processing anyway", "worker_id", workerID, "path", job.Path, "error", err)
		}
		if skip {
			q.logger.Info("queue.job.skipped", "worker_id", workerID, "path", job.Path, "reason", "duplicate")
			return
		}
	}

	out := q.proc.ProcessPhoto(ctx, job.Path)
	if out.Err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "path", job.Path, "trace_id", job.TraceID, "error", out.Err)
	} else {
		q.logger.Info("queue.job.ok",
			"worker_id", workerID,
			"path", job.Path,
			"trace_id", job.TraceID,
			"status", out.Status,
			"wait_ms", time.Since(job.SubmittedAt).Milliseconds()-out.Elapsed.Milliseconds(),
		)
	}
	if q.handle != nil {
		q.handle(ctx, job, out)
	}
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	metrics.QueueDepth.Inc()
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "path", job.Path)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			metrics.QueueDepth.Dec()
			return ctx.Err()
		}
	}
	q.logger.Debug("queued photo for processing", "path", job.Path, "force", job.Force)
	return nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish, or for ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
