// Package tracker maintains the externally visible lifecycle of scrape jobs:
// pending -> running -> completed | failed. Transitions are persisted through
// a JobStatusStore so API clients can poll progress while a crawl runs.
package tracker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/metrics"
	"github.com/autoapply/jobscout/internal/scraper"
)

// Tracker creates scrape jobs and walks them through their lifecycle.
type Tracker struct {
	store  scraper.JobStatusStore
	clock  scraper.Clock
	logger *zap.Logger
}

// New constructs a Tracker.
func New(store scraper.JobStatusStore, clock scraper.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, clock: clock, logger: logger}
}

// Create registers a new pending job for the request and returns it.
func (t *Tracker) Create(ctx context.Context, req scraper.CrawlRequest) (scraper.ScrapeJob, error) {
	job := scraper.ScrapeJob{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    scraper.JobStatusPending,
		CreatedAt: t.clock.Now(),
	}
	if err := t.store.CreateJob(ctx, job); err != nil {
		return scraper.ScrapeJob{}, fmt.Errorf("create scrape job: %w", err)
	}
	t.logger.Info("scrape job created",
		zap.String("job_id", job.ID),
		zap.String("platform", string(req.Platform)),
		zap.String("keyword", req.Keyword))
	return job, nil
}

// Start transitions a job to running.
func (t *Tracker) Start(ctx context.Context, id string) error {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != scraper.JobStatusPending {
		return fmt.Errorf("cannot start job in status %q", job.Status)
	}
	now := t.clock.Now()
	job.Status = scraper.JobStatusRunning
	job.StartedAt = &now
	if err := t.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("mark job running: %w", err)
	}
	t.logger.Info("scrape job started", zap.String("job_id", id))
	return nil
}

// Progress records page progress for a running job. The percentage is derived
// from pages visited over the page budget and clamped to [0,100].
func (t *Tracker) Progress(ctx context.Context, id string, page, pageBudget, jobsFound int) error {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	job.Progress = clampPercent(page, pageBudget)
	job.JobsFound = jobsFound
	if err := t.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("record job progress: %w", err)
	}
	return nil
}

// Complete transitions a job to its terminal state. A nil crawlErr means
// completed; otherwise the job is failed and carries the error message.
// Partial counters are recorded either way.
func (t *Tracker) Complete(ctx context.Context, id string, found, saved int, crawlErr error) error {
	job, err := t.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != scraper.JobStatusRunning {
		return fmt.Errorf("cannot complete job in status %q", job.Status)
	}
	now := t.clock.Now()
	job.CompletedAt = &now
	job.JobsFound = found
	job.JobsSaved = saved
	if crawlErr != nil {
		job.Status = scraper.JobStatusFailed
		job.ErrorMessage = crawlErr.Error()
	} else {
		job.Status = scraper.JobStatusCompleted
		job.Progress = 100
	}
	if err := t.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	metrics.ObserveScrapeJob(string(job.Status))
	t.logger.Info("scrape job finished",
		zap.String("job_id", id),
		zap.String("status", string(job.Status)),
		zap.Int("jobs_found", found),
		zap.Int("jobs_saved", saved),
		zap.Error(crawlErr))
	return nil
}

// Get fetches a job by ID.
func (t *Tracker) Get(ctx context.Context, id string) (scraper.ScrapeJob, error) {
	return t.store.GetJob(ctx, id)
}

func clampPercent(page, pageBudget int) int {
	if pageBudget <= 0 {
		return 0
	}
	pct := page * 100 / pageBudget
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
