package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/gauge-tracker/constants"
	"github.com/joseph-ayodele/gauge-tracker/internal/pipeline"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeProcessor struct {
	mu    sync.Mutex
	seen  []string
	block chan struct{}
}

func (f *fakeProcessor) ProcessPhoto(ctx context.Context, path string) pipeline.Outcome {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	f.seen = append(f.seen, path)
	f.mu.Unlock()
	return pipeline.Outcome{Path: path, Status: constants.PhotoStatusOK}
}

func (f *fakeProcessor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func TestQueueProcessesAndDrains(t *testing.T) {
	proc := &fakeProcessor{}
	var (
		mu      sync.Mutex
		handled []pipeline.Outcome
	)
	q := NewProcessorQueue(proc, discardLogger(),
		WithWorkers(3),
		WithQueueSize(2),
		WithHandler(func(_ context.Context, _ Job, out pipeline.Outcome) {
			mu.Lock()
			handled = append(handled, out)
			mu.Unlock()
		}),
	)

	ctx := context.Background()
	for _, p := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		if err := q.Enqueue(ctx, Job{Path: p}); err != nil {
			t.Fatalf("Enqueue(%s): %v", p, err)
		}
	}
	q.Shutdown(ctx)

	if proc.count() != 5 {
		t.Errorf("processed %d jobs, want 5", proc.count())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(handled) != 5 {
		t.Errorf("handled %d outcomes, want 5", len(handled))
	}

	if err := q.Enqueue(ctx, Job{Path: "late.jpg"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("enqueue after shutdown: %v", err)
	}
	q.Shutdown(ctx) // second call is a no-op
}

func TestQueueSkipsDuplicatesUnlessForced(t *testing.T) {
	proc := &fakeProcessor{}
	q := NewProcessorQueue(proc, discardLogger(),
		WithWorkers(1),
		WithSkip(func(_ context.Context, job Job) (bool, error) {
			return job.Path == "dup.jpg", nil
		}),
	)
	ctx := context.Background()
	_ = q.Enqueue(ctx, Job{Path: "dup.jpg"})
	_ = q.Enqueue(ctx, Job{Path: "dup.jpg", Force: true})
	_ = q.Enqueue(ctx, Job{Path: "new.jpg"})
	q.Shutdown(ctx)

	if proc.count() != 2 {
		t.Errorf("processed %v, want the forced duplicate and the new photo", proc.seen)
	}
}

func TestEnqueueBackpressureHonoursContext(t *testing.T) {
	proc := &fakeProcessor{block: make(chan struct{})}
	q := NewProcessorQueue(proc, discardLogger(), WithWorkers(1), WithQueueSize(1), WithProcessTimeout(time.Second))

	bg := context.Background()
	_ = q.Enqueue(bg, Job{Path: "1.jpg"}) // taken by the worker
	_ = q.Enqueue(bg, Job{Path: "2.jpg"}) // may fill the buffer

	ctx, cancel := context.WithTimeout(bg, 50*time.Millisecond)
	defer cancel()
	var err error
	for range 3 {
		if err = q.Enqueue(ctx, Job{Path: "x.jpg"}); err != nil {
			break
		}
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded while full, got %v", err)
	}

	close(proc.block)
	q.Shutdown(bg)
}
