package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/autoapply/jobscout/internal/scraper"
)

// StatusStore persists scrape-job lifecycle rows in the scrape_jobs table.
type StatusStore struct {
	pool pool
}

// NewStatusStore constructs a StatusStore over an existing pool.
func NewStatusStore(p pool) (*StatusStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &StatusStore{pool: p}, nil
}

// CreateJob inserts a freshly submitted scrape job.
func (s *StatusStore) CreateJob(ctx context.Context, job scraper.ScrapeJob) error {
	filtersJSON, err := json.Marshal(job.Request.ExtraFilters)
	if err != nil {
		return fmt.Errorf("marshal extra filters: %w", err)
	}
	query := `
		INSERT INTO scrape_jobs (
			id, platform, keyword, location, experience_level, page_budget,
			extra_filters, status, progress, jobs_found, jobs_saved,
			error_message, created_at, started_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err = s.pool.Exec(ctx, query,
		job.ID,
		job.Request.Platform,
		job.Request.Keyword,
		job.Request.Location,
		job.Request.ExperienceLevel,
		job.Request.PageBudget,
		filtersJSON,
		job.Status,
		job.Progress,
		job.JobsFound,
		job.JobsSaved,
		job.ErrorMessage,
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scrape job: %w", err)
	}
	return nil
}

// UpdateJob overwrites the mutable lifecycle fields of an existing job.
func (s *StatusStore) UpdateJob(ctx context.Context, job scraper.ScrapeJob) error {
	query := `
		UPDATE scrape_jobs
		SET status = $2, progress = $3, jobs_found = $4, jobs_saved = $5,
		    error_message = $6, started_at = $7, completed_at = $8
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Progress,
		job.JobsFound,
		job.JobsSaved,
		job.ErrorMessage,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update scrape job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return scraper.ErrJobNotFound
	}
	return nil
}

// GetJob fetches one scrape job by ID.
func (s *StatusStore) GetJob(ctx context.Context, id string) (scraper.ScrapeJob, error) {
	query := `
		SELECT id, platform, keyword, location, experience_level, page_budget,
		       extra_filters, status, progress, jobs_found, jobs_saved,
		       error_message, created_at, started_at, completed_at
		FROM scrape_jobs
		WHERE id = $1`
	var (
		job         scraper.ScrapeJob
		filtersJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Request.Platform,
		&job.Request.Keyword,
		&job.Request.Location,
		&job.Request.ExperienceLevel,
		&job.Request.PageBudget,
		&filtersJSON,
		&job.Status,
		&job.Progress,
		&job.JobsFound,
		&job.JobsSaved,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scraper.ScrapeJob{}, scraper.ErrJobNotFound
		}
		return scraper.ScrapeJob{}, fmt.Errorf("get scrape job: %w", err)
	}
	if len(filtersJSON) > 0 {
		if err := json.Unmarshal(filtersJSON, &job.Request.ExtraFilters); err != nil {
			return scraper.ScrapeJob{}, fmt.Errorf("unmarshal extra filters: %w", err)
		}
	}
	return job, nil
}
