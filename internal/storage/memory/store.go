// Package memory provides in-memory store implementations for development
// and tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/autoapply/jobscout/internal/scraper"
)

// Store keeps scraped listings and scrape-job rows in process memory. It
// implements scraper.JobSink, scraper.JobLister, and scraper.JobStatusStore.
type Store struct {
	mu       sync.RWMutex
	listings map[string]scraper.JobRecord
	jobs     map[string]scraper.ScrapeJob
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		listings: make(map[string]scraper.JobRecord),
		jobs:     make(map[string]scraper.ScrapeJob),
	}
}

// SaveJobs stores records keyed by URL, dropping duplicates. Records without
// a URL are skipped.
func (s *Store) SaveJobs(_ context.Context, jobs []scraper.JobRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := 0
	for _, job := range jobs {
		if job.URL == "" {
			continue
		}
		if _, exists := s.listings[job.URL]; exists {
			continue
		}
		s.listings[job.URL] = job
		saved++
	}
	return saved, nil
}

// Listings returns a copy of every stored record.
func (s *Store) Listings() []scraper.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scraper.JobRecord, 0, len(s.listings))
	for _, job := range s.listings {
		out = append(out, job)
	}
	return out
}

// ListJobs returns stored records newest-first. An empty platform matches
// all platforms.
func (s *Store) ListJobs(_ context.Context, platform scraper.Platform, limit, offset int) ([]scraper.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make([]scraper.JobRecord, 0, len(s.listings))
	for _, job := range s.listings {
		if platform != "" && job.SourcePlatform != platform {
			continue
		}
		all = append(all, job)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].ScrapedAt.After(all[j].ScrapedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// CreateJob stores a new scrape job.
func (s *Store) CreateJob(_ context.Context, job scraper.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("scrape job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJob overwrites an existing scrape job.
func (s *Store) UpdateJob(_ context.Context, job scraper.ScrapeJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return scraper.ErrJobNotFound
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a scrape job by ID.
func (s *Store) GetJob(_ context.Context, id string) (scraper.ScrapeJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return scraper.ScrapeJob{}, scraper.ErrJobNotFound
	}
	return job, nil
}
