// Package postgres provides Postgres-backed persistence for scraped job
// records and scrape-job lifecycle rows.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

// pool is the subset of pgxpool.Pool the stores use; pgxmock satisfies it.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PoolConfig controls the shared connection pool.
type PoolConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// NewPool builds a pgx pool from config.
func NewPool(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return p, nil
}

// JobStore writes scraped listings into the job_listings table. The url
// column carries a unique constraint, so re-scraped listings are dropped at
// insert time.
type JobStore struct {
	pool   pool
	logger *zap.Logger
}

// NewJobStore constructs a JobStore over an existing pool.
func NewJobStore(p pool, logger *zap.Logger) (*JobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: p, logger: logger}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertJobSQL = `
INSERT INTO job_listings (
	title,
	company,
	location,
	salary_min,
	salary_max,
	experience_required,
	description_snippet,
	url,
	skills,
	posted_at,
	is_easy_apply,
	source_platform,
	scraped_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
ON CONFLICT (url) DO NOTHING`

// SaveJobs inserts each record, skipping URLs already present. The returned
// count is the number of newly inserted rows.
func (s *JobStore) SaveJobs(ctx context.Context, jobs []scraper.JobRecord) (int, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("job store is not configured")
	}
	saved := 0
	for _, job := range jobs {
		if job.URL == "" {
			s.logger.Warn("skipping record without url", zap.String("title", job.Title))
			continue
		}
		tag, err := s.pool.Exec(ctx, insertJobSQL,
			job.Title,
			job.Company,
			job.Location,
			job.SalaryMin,
			job.SalaryMax,
			job.ExperienceRequired,
			job.DescriptionSnippet,
			job.URL,
			job.Skills,
			job.PostedAt,
			job.IsEasyApply,
			job.SourcePlatform,
			job.ScrapedAt,
		)
		if err != nil {
			return saved, fmt.Errorf("insert job listing: %w", err)
		}
		saved += int(tag.RowsAffected())
	}
	s.logger.Info("jobs persisted", zap.Int("received", len(jobs)), zap.Int("saved", saved))
	return saved, nil
}

// ListJobs returns stored listings for a platform, newest scraped first.
func (s *JobStore) ListJobs(ctx context.Context, platform scraper.Platform, limit, offset int) ([]scraper.JobRecord, error) {
	query := `
		SELECT title, company, location, salary_min, salary_max,
		       experience_required, description_snippet, url, skills,
		       posted_at, is_easy_apply, source_platform, scraped_at
		FROM job_listings
		WHERE ($1 = '' OR source_platform = $1)
		ORDER BY scraped_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, string(platform), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list job listings: %w", err)
	}
	defer rows.Close()

	var jobs []scraper.JobRecord
	for rows.Next() {
		var job scraper.JobRecord
		err := rows.Scan(
			&job.Title,
			&job.Company,
			&job.Location,
			&job.SalaryMin,
			&job.SalaryMax,
			&job.ExperienceRequired,
			&job.DescriptionSnippet,
			&job.URL,
			&job.Skills,
			&job.PostedAt,
			&job.IsEasyApply,
			&job.SourcePlatform,
			&job.ScrapedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job listing row: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
