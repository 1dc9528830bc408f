// Package dispatcher bounds how many scrape jobs run concurrently. Browser
// crawls are heavyweight (one Chrome instance each), so submissions flow
// through a bounded queue into a fixed worker pool instead of spawning a
// goroutine per request.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

// ErrQueueFull is returned when the submission queue cannot accept more work.
var ErrQueueFull = errors.New("scrape queue is full")

// Runner executes one scrape job to completion.
type Runner interface {
	Run(ctx context.Context, job scraper.ScrapeJob, resume bool) error
}

type item struct {
	job    scraper.ScrapeJob
	resume bool
}

// Dispatcher fans queued scrape jobs out to a worker pool.
type Dispatcher struct {
	runner      Runner
	queue       chan item
	concurrency int
	logger      *zap.Logger
	wg          sync.WaitGroup
}

// New creates a Dispatcher. concurrency <= 0 defaults to 2 workers and
// queueDepth <= 0 to 16 pending jobs.
func New(runner Runner, concurrency, queueDepth int, logger *zap.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 2
	}
	if queueDepth <= 0 {
		queueDepth = 16
	}
	return &Dispatcher{
		runner:      runner,
		queue:       make(chan item, queueDepth),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Start launches the worker pool. Workers drain until ctx is canceled; call
// Wait to block until they have finished their in-flight jobs.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.concurrency; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.work(ctx, id)
		}(i)
	}
}

func (d *Dispatcher) work(ctx context.Context, id int) {
	logger := d.logger.With(zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-d.queue:
			logger.Info("picked up scrape job", zap.String("job_id", it.job.ID))
			if err := d.runner.Run(ctx, it.job, it.resume); err != nil {
				logger.Warn("scrape job ended with error",
					zap.String("job_id", it.job.ID), zap.Error(err))
			}
		}
	}
}

// Enqueue submits a job for execution. It never blocks; a full queue is
// surfaced to the caller as ErrQueueFull.
func (d *Dispatcher) Enqueue(ctx context.Context, job scraper.ScrapeJob, resume bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.queue <- item{job: job, resume: resume}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Wait blocks until all workers have exited. Call after canceling the Start
// context.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
