package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

// blockingRunner holds jobs until released so queue saturation is testable.
type blockingRunner struct {
	mu      sync.Mutex
	started []string
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, job scraper.ScrapeJob, _ bool) error {
	r.mu.Lock()
	r.started = append(r.started, job.ID)
	r.mu.Unlock()
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return nil
}

func (r *blockingRunner) startedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started)
}

func TestDispatcherRunsQueuedJobs(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)

	d := New(runner, 2, 4, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Enqueue(ctx, scraper.ScrapeJob{ID: id}, false))
	}

	require.Eventually(t, func() bool {
		return runner.startedCount() == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	d.Wait()
}

func TestDispatcherQueueFull(t *testing.T) {
	runner := newBlockingRunner()
	defer close(runner.release)

	// One worker, one queue slot: the first job occupies the worker, the
	// second fills the queue, the third is rejected.
	d := New(runner, 1, 1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	require.NoError(t, d.Enqueue(ctx, scraper.ScrapeJob{ID: "a"}, false))
	require.Eventually(t, func() bool {
		return runner.startedCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, d.Enqueue(ctx, scraper.ScrapeJob{ID: "b"}, false))
	require.ErrorIs(t, d.Enqueue(ctx, scraper.ScrapeJob{ID: "c"}, false), ErrQueueFull)
}

func TestDispatcherEnqueueAfterCancel(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)

	d := New(runner, 1, 1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()
	d.Wait()

	require.Error(t, d.Enqueue(ctx, scraper.ScrapeJob{ID: "late"}, false))
}
