// Package runner wires the scraping ports together and executes one scrape
// job end to end: browser session, navigation engine, site adapter, crawl
// loop, persistence, and lifecycle tracking.
package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/adapters"
	"github.com/autoapply/jobscout/internal/apisource"
	"github.com/autoapply/jobscout/internal/browser"
	"github.com/autoapply/jobscout/internal/metrics"
	"github.com/autoapply/jobscout/internal/scraper"
	"github.com/autoapply/jobscout/internal/tracker"
)

// BrowserFactory opens a fresh browser session for one crawl. Sessions are
// not shared between jobs; each crawl gets its own fingerprint.
type BrowserFactory func(ctx context.Context) (scraper.Browser, error)

// Config holds the pacing and retry knobs a Runner passes down.
type Config struct {
	DelayMin   time.Duration
	DelayMax   time.Duration
	MaxRetries int
	NavTimeout time.Duration

	// LinkedInCookie is the li_at session cookie; empty means anonymous.
	LinkedInCookie string

	// APISourceLimit caps how many records each API searcher may return for
	// one job.
	APISourceLimit int
}

// SeenFilter is the cross-session URL dedup port; the Redis implementation
// lives in storage/rediscache. A failing filter is expected to pass URLs
// through rather than drop them.
type SeenFilter interface {
	FilterNew(ctx context.Context, urls []string) []string
}

// Runner executes scrape jobs.
type Runner struct {
	cfg         Config
	newBrowser  BrowserFactory
	checkpoints scraper.CheckpointStore
	sink        scraper.JobSink
	seen        SeenFilter
	tracker     *tracker.Tracker
	searchers   []apisource.Searcher
	clock       scraper.Clock
	logger      *zap.Logger
}

// WithSeenFilter installs a cross-session URL filter applied before
// persistence. Nil disables filtering.
func (r *Runner) WithSeenFilter(f SeenFilter) *Runner {
	r.seen = f
	return r
}

// New constructs a Runner. searchers may be empty when no API keys are
// configured; api_source jobs then fail with a clear error.
func New(
	cfg Config,
	newBrowser BrowserFactory,
	checkpoints scraper.CheckpointStore,
	sink scraper.JobSink,
	tr *tracker.Tracker,
	searchers []apisource.Searcher,
	clock scraper.Clock,
	logger *zap.Logger,
) *Runner {
	if cfg.APISourceLimit <= 0 {
		cfg.APISourceLimit = 100
	}
	return &Runner{
		cfg:         cfg,
		newBrowser:  newBrowser,
		checkpoints: checkpoints,
		sink:        sink,
		tracker:     tr,
		searchers:   searchers,
		clock:       clock,
		logger:      logger,
	}
}

// Run executes one scrape job synchronously and finalizes its status. Partial
// results are persisted even when the crawl ends in an error; the job is
// failed only when the crawl itself failed.
func (r *Runner) Run(ctx context.Context, job scraper.ScrapeJob, resume bool) error {
	logger := r.logger.With(
		zap.String("job_id", job.ID),
		zap.String("platform", string(job.Request.Platform)))

	if err := r.tracker.Start(ctx, job.ID); err != nil {
		return err
	}
	metrics.IncActiveCrawls()
	defer metrics.DecActiveCrawls()

	var (
		jobs     []scraper.JobRecord
		crawlErr error
	)
	if job.Request.Platform == scraper.PlatformAPISource {
		jobs, crawlErr = r.runAPISearch(ctx, job, logger)
	} else {
		jobs, crawlErr = r.runBrowserCrawl(ctx, job, resume, logger)
	}

	toSave := jobs
	if r.seen != nil {
		toSave = r.filterSeen(context.WithoutCancel(ctx), jobs, logger)
	}

	saved := 0
	if len(toSave) > 0 {
		// Persistence happens even after a failed crawl; saving must also
		// survive the job's own cancellation.
		var saveErr error
		saved, saveErr = r.sink.SaveJobs(context.WithoutCancel(ctx), toSave)
		if saveErr != nil {
			logger.Error("persisting jobs failed", zap.Error(saveErr))
			if crawlErr == nil {
				crawlErr = fmt.Errorf("persisting jobs: %w", saveErr)
			}
		}
	}

	if err := r.tracker.Complete(context.WithoutCancel(ctx), job.ID, len(jobs), saved, crawlErr); err != nil {
		logger.Error("finalizing job failed", zap.Error(err))
		return err
	}
	return crawlErr
}

// filterSeen drops records whose URL was scraped in an earlier session.
func (r *Runner) filterSeen(ctx context.Context, jobs []scraper.JobRecord, logger *zap.Logger) []scraper.JobRecord {
	urls := make([]string, 0, len(jobs))
	for _, rec := range jobs {
		urls = append(urls, rec.URL)
	}
	keep := make(map[string]struct{}, len(urls))
	for _, u := range r.seen.FilterNew(ctx, urls) {
		keep[u] = struct{}{}
	}
	fresh := make([]scraper.JobRecord, 0, len(keep))
	for _, rec := range jobs {
		if _, ok := keep[rec.URL]; ok {
			fresh = append(fresh, rec)
		}
	}
	if dropped := len(jobs) - len(fresh); dropped > 0 {
		logger.Info("seen filter dropped known listings", zap.Int("dropped", dropped))
	}
	return fresh
}

// runBrowserCrawl drives a chromedp-backed crawl for one job.
func (r *Runner) runBrowserCrawl(ctx context.Context, job scraper.ScrapeJob, resume bool, logger *zap.Logger) ([]scraper.JobRecord, error) {
	b, err := r.newBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening browser session: %w", err)
	}
	defer func() {
		if err := b.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("closing browser session failed", zap.Error(err))
		}
	}()

	adapter, err := adapters.New(job.Request.Platform, adapters.Deps{
		Browser:        b,
		Clock:          r.clock,
		Logger:         logger,
		LinkedInCookie: r.cfg.LinkedInCookie,
	})
	if err != nil {
		return nil, err
	}
	if li, ok := adapter.(*adapters.LinkedIn); ok && r.cfg.LinkedInCookie != "" {
		if err := li.Authenticate(ctx); err != nil {
			return nil, fmt.Errorf("linkedin authentication: %w", err)
		}
	}

	nav := browser.NewRetryNavigator(browser.NavigatorConfig{
		MaxRetries: r.cfg.MaxRetries,
		DelayMin:   r.cfg.DelayMin,
		DelayMax:   r.cfg.DelayMax,
		NavTimeout: r.cfg.NavTimeout,
	}, b, job.Request.Platform, logger)

	crawler := scraper.NewCrawler(scraper.CrawlerConfig{
		DelayMin: r.cfg.DelayMin,
		DelayMax: r.cfg.DelayMax,
	}, adapter, nav, r.checkpoints, r.clock, logger)

	onProgress := func(page, pageBudget, jobsFound int) {
		if err := r.tracker.Progress(ctx, job.ID, page, pageBudget, jobsFound); err != nil {
			logger.Warn("recording progress failed", zap.Int("page", page), zap.Error(err))
		}
	}
	return crawler.Crawl(ctx, job.Request, resume, onProgress)
}

// runAPISearch fans the request out to every configured API searcher. One
// searcher failing does not abort the others; the job fails only when every
// searcher failed and nothing was gathered.
func (r *Runner) runAPISearch(ctx context.Context, job scraper.ScrapeJob, logger *zap.Logger) ([]scraper.JobRecord, error) {
	if len(r.searchers) == 0 {
		return nil, fmt.Errorf("no api searchers configured")
	}

	var (
		jobs    []scraper.JobRecord
		seen    = make(map[string]struct{})
		lastErr error
	)
	for _, s := range r.searchers {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		found, err := s.Search(ctx, job.Request, r.cfg.APISourceLimit)
		if err != nil {
			logger.Warn("api searcher failed",
				zap.String("source", s.Source()), zap.Error(err))
			lastErr = fmt.Errorf("%s: %w", s.Source(), err)
			continue
		}
		added := 0
		for _, rec := range found {
			if rec.URL == "" {
				continue
			}
			if _, dup := seen[rec.URL]; dup {
				continue
			}
			seen[rec.URL] = struct{}{}
			jobs = append(jobs, rec)
			added++
		}
		metrics.ObserveJobsScraped(string(scraper.PlatformAPISource), added)
		logger.Info("api searcher finished",
			zap.String("source", s.Source()), zap.Int("jobs", added))
	}
	if len(jobs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return jobs, nil
}
