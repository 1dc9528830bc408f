// Package app initializes and holds long-lived application services, acting
// as a dependency injection container for the CLI and server commands.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autoapply/jobscout/internal/apisource"
	"github.com/autoapply/jobscout/internal/browser"
	"github.com/autoapply/jobscout/internal/config"
	"github.com/autoapply/jobscout/internal/metrics"
	"github.com/autoapply/jobscout/internal/runner"
	"github.com/autoapply/jobscout/internal/scraper"
	"github.com/autoapply/jobscout/internal/storage/memory"
	pgstore "github.com/autoapply/jobscout/internal/storage/postgres"
	"github.com/autoapply/jobscout/internal/storage/rediscache"
	"github.com/autoapply/jobscout/internal/tracker"
)

// apiSearchInterval throttles each API searcher; the upstream quotas are
// small monthly free tiers.
const apiSearchInterval = 2 * time.Second

// App holds all the shared, long-lived services for the application. It is
// initialized once at startup and passed to the commands that need it.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool        *pgxpool.Pool
	redisClient *redis.Client

	sink        scraper.JobSink
	lister      scraper.JobLister
	statusStore scraper.JobStatusStore
	tracker     *tracker.Tracker
	runner      *runner.Runner
}

// New creates and initializes an App from configuration. It fails fast when
// a configured backend cannot be reached; unconfigured backends fall back to
// in-memory implementations.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()
	clock := scraper.SystemClock{}

	a := &App{cfg: cfg, logger: logger}

	checkpoints, err := scraper.NewFileCheckpointStore(cfg.Checkpoint.Dir, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("init checkpoint store: %w", err)
	}

	if cfg.DB.DSN != "" {
		logger.Info("connecting to postgres")
		pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		a.pool = pool
		jobStore, err := pgstore.NewJobStore(pool, logger)
		if err != nil {
			return nil, err
		}
		statusStore, err := pgstore.NewStatusStore(pool)
		if err != nil {
			return nil, err
		}
		a.sink = jobStore
		a.lister = jobStore
		a.statusStore = statusStore
	} else {
		logger.Info("no database configured, using in-memory stores")
		mem := memory.NewStore()
		a.sink = mem
		a.lister = mem
		a.statusStore = mem
	}

	a.tracker = tracker.New(a.statusStore, clock, logger)

	searchers, err := buildSearchers(cfg, clock, logger)
	if err != nil {
		return nil, err
	}

	newBrowser := func(context.Context) (scraper.Browser, error) {
		return browser.NewSession(browser.Config{
			Headless: cfg.Browser.Headless,
			UseProxy: cfg.Browser.UseProxy,
			ProxyURL: cfg.Browser.ProxyURL,
		}, logger)
	}

	a.runner = runner.New(runner.Config{
		DelayMin:       cfg.DelayMin(),
		DelayMax:       cfg.DelayMax(),
		MaxRetries:     cfg.Scraper.MaxRetries,
		NavTimeout:     cfg.NavTimeout(),
		LinkedInCookie: cfg.LinkedIn.Cookie,
		APISourceLimit: cfg.APIs.ResultLimit,
	}, newBrowser, checkpoints, a.sink, a.tracker, searchers, clock, logger)

	if cfg.Redis.URL != "" {
		logger.Info("connecting to redis")
		client, err := rediscache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.redisClient = client
		a.runner.WithSeenFilter(rediscache.NewSeenFilter(client, cfg.SeenTTL(), logger))
	}

	logger.Info("application services initialized")
	return a, nil
}

// buildSearchers wires one API searcher per configured key.
func buildSearchers(cfg config.Config, clock scraper.Clock, logger *zap.Logger) ([]apisource.Searcher, error) {
	var searchers []apisource.Searcher
	limiter := func() *rate.Limiter {
		return rate.NewLimiter(rate.Every(apiSearchInterval), 1)
	}
	if cfg.APIs.SerperKey != "" {
		s, err := apisource.NewSerperClient(cfg.APIs.SerperKey, limiter(), clock, logger)
		if err != nil {
			return nil, err
		}
		searchers = append(searchers, s)
	}
	if cfg.APIs.JSearchKey != "" {
		s, err := apisource.NewJSearchClient(cfg.APIs.JSearchKey, limiter(), clock, logger)
		if err != nil {
			return nil, err
		}
		searchers = append(searchers, s)
	}
	if cfg.APIs.ScrapingBeeKey != "" {
		s, err := apisource.NewScrapingBeeClient(cfg.APIs.ScrapingBeeKey, limiter(), clock, logger)
		if err != nil {
			return nil, err
		}
		searchers = append(searchers, s)
	}
	for _, s := range searchers {
		logger.Info("api searcher enabled", zap.String("source", s.Source()))
	}
	return searchers, nil
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Tracker returns the scrape-job lifecycle tracker.
func (a *App) Tracker() *tracker.Tracker { return a.tracker }

// Runner returns the scrape runner.
func (a *App) Runner() *runner.Runner { return a.runner }

// JobLister returns read access to the stored listings.
func (a *App) JobLister() scraper.JobLister { return a.lister }

// Close gracefully shuts down all services in the App container.
func (a *App) Close() {
	a.logger.Info("shutting down application services")
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("error closing redis client", zap.Error(err))
		}
	}
	// Flush buffered log entries; stderr sync failures are expected on some
	// platforms and not actionable.
	_ = a.logger.Sync()
}
