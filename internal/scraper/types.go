// Package scraper defines the core types and contracts for the job scraping engine.
package scraper

import (
	"fmt"
	"time"
)

// Platform identifies a job board a crawl targets.
type Platform string

// Supported platforms.
const (
	PlatformNaukri    Platform = "naukri"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstahire Platform = "instahire"
	PlatformAPISource Platform = "api_source"
)

// ParsePlatform validates a platform name supplied by a client.
func ParsePlatform(raw string) (Platform, error) {
	switch Platform(raw) {
	case PlatformNaukri, PlatformLinkedIn, PlatformInstahire, PlatformAPISource:
		return Platform(raw), nil
	default:
		return "", fmt.Errorf("unknown platform %q", raw)
	}
}

// MaxPageBudget bounds how many listing pages a single crawl may visit.
const MaxPageBudget = 20

// CrawlRequest is the immutable input to one crawl run.
type CrawlRequest struct {
	Platform        Platform          `json:"platform"`
	Keyword         string            `json:"keyword"`
	Location        string            `json:"location,omitempty"`
	ExperienceLevel string            `json:"experience_level,omitempty"`
	PageBudget      int               `json:"page_budget"`
	ExtraFilters    map[string]string `json:"extra_filters,omitempty"`
}

// Validate enforces the request invariants.
func (r CrawlRequest) Validate() error {
	if r.Keyword == "" {
		return fmt.Errorf("keyword is required")
	}
	if r.PageBudget < 1 || r.PageBudget > MaxPageBudget {
		return fmt.Errorf("page_budget must be between 1 and %d, got %d", MaxPageBudget, r.PageBudget)
	}
	if _, err := ParsePlatform(string(r.Platform)); err != nil {
		return err
	}
	return nil
}

// JobRecord is one scraped listing. Records are created by a site adapter
// from a single page element and are immutable afterwards. URL is the dedup
// key and must be non-empty and unique within a crawl.
type JobRecord struct {
	Title              string    `json:"title"`
	Company            string    `json:"company"`
	Location           string    `json:"location"`
	SalaryMin          *int64    `json:"salary_min,omitempty"`
	SalaryMax          *int64    `json:"salary_max,omitempty"`
	ExperienceRequired string    `json:"experience_required,omitempty"`
	DescriptionSnippet string    `json:"description_snippet,omitempty"`
	URL                string    `json:"url"`
	Skills             []string  `json:"skills,omitempty"`
	PostedAt           *time.Time `json:"posted_at,omitempty"`
	IsEasyApply        bool      `json:"is_easy_apply"`
	SourcePlatform     Platform  `json:"source_platform"`
	ScrapedAt          time.Time `json:"scraped_at"`
}

// Checkpoint is the resumable state for one (platform, keyword, location)
// crawl. It is overwritten after every successfully processed page and read
// once at crawl start when resume is requested. A checkpoint older than
// CheckpointMaxAge is discarded.
type Checkpoint struct {
	Platform    Platform    `json:"platform"`
	Keyword     string      `json:"keyword"`
	Location    string      `json:"location"`
	CurrentPage int         `json:"current_page"`
	JobsCount   int         `json:"jobs_count"`
	Jobs        []JobRecord `json:"jobs"`
	Timestamp   time.Time   `json:"timestamp"`
}

// CheckpointMaxAge is the window inside which a checkpoint is considered
// resumable. Listing pages shift between sessions, so checkpoints are a
// short-lived crash-recovery mechanism, not a long-term resume feature.
const CheckpointMaxAge = time.Hour

// JobStatus is the externally visible lifecycle state of a scrape job.
type JobStatus string

// Scrape job status values.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ScrapeJob is the metadata tracked for each submitted crawl.
type ScrapeJob struct {
	ID           string       `json:"id"`
	Request      CrawlRequest `json:"request"`
	Status       JobStatus    `json:"status"`
	Progress     int          `json:"progress"`
	JobsFound    int          `json:"jobs_found"`
	JobsSaved    int          `json:"jobs_saved"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	StartedAt    *time.Time   `json:"started_at,omitempty"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

// ProgressFunc is invoked after each processed page with the 1-indexed page
// number, the page budget, and the running job count.
type ProgressFunc func(page, pageBudget, jobsFound int)
