package async

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (u *stubUploader) UploadReceiptFile(_ context.Context, path string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.paths = append(u.paths, path)
	return u.err
}

func TestQueueProcessesJobs(t *testing.T) {
	uploader := &stubUploader{}
	q := NewUploadQueue(uploader, nil, WithWorkers(2), WithQueueSize(8))

	ctx := context.Background()
	q.Enqueue(ctx, Job{Path: "/captures/a.jpg", SubmittedAt: time.Now()})
	q.Enqueue(ctx, Job{Path: "/captures/b.pdf", SubmittedAt: time.Now()})
	q.Shutdown(ctx)

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	assert.ElementsMatch(t, []string{"/captures/a.jpg", "/captures/b.pdf"}, uploader.paths)
}

func TestQueueContinuesAfterFailedUpload(t *testing.T) {
	uploader := &stubUploader{err: errors.New("remote down")}
	q := NewUploadQueue(uploader, nil, WithWorkers(1))

	ctx := context.Background()
	q.Enqueue(ctx, Job{Path: "/captures/a.jpg"})
	q.Enqueue(ctx, Job{Path: "/captures/b.jpg"})
	q.Shutdown(ctx)

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	assert.Len(t, uploader.paths, 2, "a failed upload must not stall the workers")
}

func TestEnqueueAfterShutdownIsDropped(t *testing.T) {
	uploader := &stubUploader{}
	q := NewUploadQueue(uploader, nil, WithWorkers(1))

	ctx := context.Background()
	q.Shutdown(ctx)
	q.Enqueue(ctx, Job{Path: "/captures/late.jpg"})

	uploader.mu.Lock()
	defer uploader.mu.Unlock()
	assert.Empty(t, uploader.paths)
}
