package scraper

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/metrics"
)

// CrawlerConfig holds the pacing knobs for one crawl session.
// This struct is decoupled from Viper so the crawler can be constructed and
// tested without a live configuration source.
type CrawlerConfig struct {
	// DelayMin and DelayMax bound the uniform random pause between pages.
	DelayMin time.Duration
	DelayMax time.Duration
}

// nextPageDelayFactor stretches the between-page pause relative to the normal
// post-navigation delay.
const nextPageDelayFactor = 1.5

// Crawler drives the page-by-page crawl for a single platform. It owns no
// browser state itself; everything it touches arrives through injected ports
// so it can run against fakes.
type Crawler struct {
	cfg         CrawlerConfig
	adapter     SiteAdapter
	nav         Navigator
	checkpoints CheckpointStore
	clock       Clock
	logger      *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

// NewCrawler wires a crawler. checkpoints may be nil, in which case progress
// is not persisted and resume is a no-op.
func NewCrawler(cfg CrawlerConfig, adapter SiteAdapter, nav Navigator, checkpoints CheckpointStore, clock Clock, logger *zap.Logger) *Crawler {
	if cfg.DelayMin <= 0 {
		cfg.DelayMin = 2 * time.Second
	}
	if cfg.DelayMax < cfg.DelayMin {
		cfg.DelayMax = cfg.DelayMin
	}
	return &Crawler{
		cfg:         cfg,
		adapter:     adapter,
		nav:         nav,
		checkpoints: checkpoints,
		clock:       clock,
		logger:      logger.With(zap.String("platform", string(adapter.Platform()))),
		sleep:       sleepContext,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Crawl runs the pagination loop and returns every job gathered, deduplicated
// by URL within this run. Per-card extraction errors are logged and skipped.
// A navigation failure after retry exhaustion stops the loop but still
// returns and checkpoints the partial result alongside the error; the caller
// decides whether that counts as completed or failed.
func (c *Crawler) Crawl(ctx context.Context, req CrawlRequest, resume bool, onProgress ProgressFunc) ([]JobRecord, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	platform := string(c.adapter.Platform())
	var jobs []JobRecord
	seen := make(map[string]struct{})
	startPage := 1

	if resume && c.checkpoints != nil {
		cp, err := c.checkpoints.Load(ctx, c.adapter.Platform(), req.Keyword, req.Location)
		if err != nil {
			return nil, fmt.Errorf("loading checkpoint: %w", err)
		}
		if cp != nil {
			jobs = append(jobs, cp.Jobs...)
			for _, j := range cp.Jobs {
				seen[j.URL] = struct{}{}
			}
			startPage = cp.CurrentPage + 1
			c.logger.Info("resuming from checkpoint",
				zap.Int("start_page", startPage),
				zap.Int("jobs", len(jobs)))
		}
	}

	for page := startPage; page <= req.PageBudget; page++ {
		// Cancellation takes effect between pages, never mid-page.
		if err := ctx.Err(); err != nil {
			c.saveCheckpoint(ctx, req, page-1, jobs)
			return jobs, err
		}

		pageStart := c.clock.Now()
		rawURL := c.adapter.BuildSearchURL(req, page)
		c.logger.Info("fetching page", zap.Int("page", page), zap.String("url", rawURL))

		if err := c.nav.Navigate(ctx, rawURL); err != nil {
			metrics.ObservePage(platform, "error", c.clock.Now().Sub(pageStart))
			c.logger.Error("navigation failed, stopping crawl",
				zap.Int("page", page), zap.Error(err))
			c.saveCheckpoint(ctx, req, page-1, jobs)
			return jobs, fmt.Errorf("page %d: %w", page, err)
		}

		cards, err := c.adapter.JobCards(ctx)
		if err != nil {
			metrics.ObservePage(platform, "error", c.clock.Now().Sub(pageStart))
			c.logger.Error("listing job cards failed, stopping crawl",
				zap.Int("page", page), zap.Error(err))
			c.saveCheckpoint(ctx, req, page-1, jobs)
			return jobs, fmt.Errorf("page %d: listing job cards: %w", page, err)
		}
		if len(cards) == 0 {
			c.logger.Info("no job cards on page, stopping", zap.Int("page", page))
			metrics.ObservePage(platform, "empty", c.clock.Now().Sub(pageStart))
			c.saveCheckpoint(ctx, req, page, jobs)
			return jobs, nil
		}

		added := 0
		for i, card := range cards {
			rec, err := c.adapter.ParseJobCard(ctx, card)
			if err != nil {
				c.logger.Warn("job card extraction failed, skipping",
					zap.Int("page", page), zap.Int("card", i), zap.Error(err))
				continue
			}
			if rec == nil {
				continue
			}
			if _, dup := seen[rec.URL]; dup {
				continue
			}
			seen[rec.URL] = struct{}{}
			jobs = append(jobs, *rec)
			added++
		}

		metrics.ObservePage(platform, "success", c.clock.Now().Sub(pageStart))
		metrics.ObserveJobsScraped(platform, added)
		c.logger.Info("page processed",
			zap.Int("page", page),
			zap.Int("new_jobs", added),
			zap.Int("total_jobs", len(jobs)))

		if onProgress != nil {
			onProgress(page, req.PageBudget, len(jobs))
		}
		c.saveCheckpoint(ctx, req, page, jobs)

		if page < req.PageBudget {
			hasNext, err := c.adapter.HasNextPage(ctx)
			if err != nil {
				c.logger.Warn("next-page probe failed, stopping", zap.Error(err))
				return jobs, nil
			}
			if !hasNext {
				c.logger.Info("no next page, stopping", zap.Int("page", page))
				return jobs, nil
			}
			if err := c.sleep(ctx, c.nextPageDelay()); err != nil {
				return jobs, err
			}
		}
	}
	return jobs, nil
}

// saveCheckpoint snapshots progress, logging rather than failing the crawl
// when persistence misbehaves.
func (c *Crawler) saveCheckpoint(ctx context.Context, req CrawlRequest, page int, jobs []JobRecord) {
	if c.checkpoints == nil || page < 1 {
		return
	}
	cp := Checkpoint{
		Platform:    c.adapter.Platform(),
		Keyword:     req.Keyword,
		Location:    req.Location,
		CurrentPage: page,
		JobsCount:   len(jobs),
		Jobs:        jobs,
		Timestamp:   c.clock.Now(),
	}
	// Checkpointing must survive cancellation so partial work is kept.
	if err := c.checkpoints.Save(context.WithoutCancel(ctx), cp); err != nil {
		c.logger.Warn("checkpoint save failed", zap.Int("page", page), zap.Error(err))
	}
}

// nextPageDelay samples the uniform [DelayMin, DelayMax] pause and stretches
// it for the between-page case.
func (c *Crawler) nextPageDelay() time.Duration {
	span := c.cfg.DelayMax - c.cfg.DelayMin
	d := c.cfg.DelayMin
	if span > 0 {
		d += time.Duration(c.rng.Int63n(int64(span)))
	}
	return time.Duration(float64(d) * nextPageDelayFactor)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
