// Package async runs captured receipt files through the upload pipeline on a
// small worker pool.
package async

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one captured file awaiting upload.
type Job struct {
	Path        string
	SubmittedAt time.Time
}

// Uploader is the slice of the tracker facade the queue needs.
type Uploader interface {
	UploadReceiptFile(ctx context.Context, path string) error
}

// UploadQueue feeds captured files to the uploader from a bounded channel.
type UploadQueue struct {
	uploader Uploader
	logger   *slog.Logger
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*UploadQueue)

func WithWorkers(n int) Option {
	return func(q *UploadQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *UploadQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithUploadTimeout(d time.Duration) Option {
	return func(q *UploadQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewUploadQueue(uploader Uploader, logger *slog.Logger, opts ...Option) *UploadQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &UploadQueue{
		uploader: uploader,
		logger:   logger,
		workers:  2,
		timeout:  2 * time.Minute,
		ch:       make(chan Job, 64),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *UploadQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("upload worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.uploader.UploadReceiptFile(ctx, job.Path)
					cancel()

					if err != nil {
						q.logger.Error("upload failed", "worker_id", workerID, "path", job.Path, "error", err)
					} else {
						q.logger.Info("uploaded capture", "worker_id", workerID, "path", job.Path)
					}
				}

				q.logger.Info("upload worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue queues one capture for upload. Blocks when the queue is full.
func (q *UploadQueue) Enqueue(_ context.Context, job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "path", job.Path)
		return
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued capture for upload", "path", job.Path)
	default:
		q.logger.Warn("queue full, applying backpressure", "path", job.Path)
		q.ch <- job
	}
}

// Shutdown drains in-flight jobs, bounded by ctx.
func (q *UploadQueue) Shutdown(ctx context.Context) {
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
