package queue

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default worker settings
const (
	DefaultConcurrency  = 2
	DefaultMaxRetries   = 3
	DefaultPollInterval = time.Second
	dequeueTimeout      = 2 * time.Second
	baseRetryBackoff    = 2 * time.Second
	maxRetryBackoff     = 2 * time.Minute
)

// HandlerFunc processes one job. A non-nil error triggers the worker-level
// retry policy; handlers are expected to be idempotent.
type HandlerFunc func(ctx context.Context, job *Job) error

// WorkerConfig bounds one worker pool.
type WorkerConfig struct {
	Concurrency int
	MaxRetries  int
}

// Worker consumes a queue with bounded concurrency.
type Worker struct {
	queue    *Queue
	cfg      WorkerConfig
	logger   *zap.Logger
	consumer string
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewWorker creates a worker pool for q.
func NewWorker(q *Queue, cfg WorkerConfig, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// The consumer name keys the processing lists. It must be stable across
	// restarts so a new run can requeue jobs its predecessor left in flight.
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return &Worker{
		queue:    q,
		cfg:      cfg,
		logger:   logger.With(zap.String("queue", q.Name())),
		consumer: host,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers the handler for a job type. Must be called before Run.
func (w *Worker) Handle(jobType string, fn HandlerFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = fn
}

// Run starts the promoter and consumer goroutines and blocks until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.promoteLoop(ctx)
	}()

	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(consumer string) {
			defer wg.Done()
			w.consumeLoop(ctx, consumer)
		}(fmt.Sprintf("%s-%d", w.consumer, i))
	}

	w.logger.Info("worker started", zap.Int("concurrency", w.cfg.Concurrency))
	wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) promoteLoop(ctx context.Context) {
	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := w.queue.promoteDue(ctx, now); err != nil && ctx.Err() == nil {
				w.logger.Warn("promote delayed jobs failed", zap.Error(err))
			}
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context, consumer string) {
	if n, err := w.queue.recoverProcessing(ctx, consumer); err != nil {
		w.logger.Warn("recover in-flight jobs failed",
			zap.String("consumer", consumer), zap.Error(err))
	} else if n > 0 {
		w.logger.Info("requeued in-flight jobs from previous run",
			zap.String("consumer", consumer), zap.Int("count", n))
	}

	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.dequeue(ctx, consumer, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue failed", zap.Error(err))
			time.Sleep(DefaultPollInterval)
			continue
		}
		if job == nil {
			continue
		}

		w.process(ctx, consumer, job)
	}
}

func (w *Worker) process(ctx context.Context, consumer string, job *Job) {
	// The job stays on the processing list until handling settles: a crash
	// here leaves it recoverable, and failed jobs are parked for retry or
	// dead-lettered before the ack removes them.
	defer func() {
		if err := w.queue.ack(ctx, consumer, job); err != nil {
			w.logger.Warn("ack failed",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()
	if !ok {
		w.logger.Error("no handler for job type",
			zap.String("job_id", job.ID),
			zap.String("job_type", job.Type))
		if err := w.queue.deadLetter(ctx, job); err != nil {
			w.logger.Error("dead-letter failed", zap.Error(err))
		}
		return
	}

	err := handler(ctx, job)
	if err == nil {
		return
	}

	job.Attempts++
	w.logger.Warn("job failed",
		zap.String("job_id", job.ID),
		zap.String("job_type", job.Type),
		zap.Int("attempts", job.Attempts),
		zap.Error(err))

	if job.Attempts >= w.cfg.MaxRetries {
		if dlErr := w.queue.deadLetter(ctx, job); dlErr != nil {
			w.logger.Error("dead-letter failed", zap.Error(dlErr))
		}
		return
	}

	if rqErr := w.queue.retryLater(ctx, job, RetryBackoff(job.Attempts)); rqErr != nil {
		w.logger.Error("requeue failed", zap.Error(rqErr))
	}
}

// RetryBackoff returns the delay before retry n (1-based): exponential from
// baseRetryBackoff, capped at maxRetryBackoff.
func RetryBackoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseRetryBackoff << (attempt - 1)
	if d > maxRetryBackoff || d <= 0 {
		return maxRetryBackoff
	}
	return d
}
