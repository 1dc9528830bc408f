package scraper

import (
	"context"
	"time"
)

// WaitCondition selects how long a navigation waits before it is considered
// settled.
type WaitCondition string

// Supported wait conditions.
const (
	WaitLoad             WaitCondition = "load"
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitNetworkIdle      WaitCondition = "networkidle"
)

// PageInfo describes the outcome of a single page load.
type PageInfo struct {
	StatusCode int
	FinalURL   string
}

// Element is an opaque handle to one node on the loaded page. Adapters query
// descendants of a job card through it; implementations may issue further
// network calls, so every accessor takes a context.
type Element interface {
	// Text returns the trimmed text of the first descendant matching
	// selector, or "" with ok=false when none matches.
	Text(ctx context.Context, selector string) (text string, ok bool, err error)
	// Texts returns the trimmed text of every descendant matching selector.
	Texts(ctx context.Context, selector string) ([]string, error)
	// Attr returns the named attribute of the element itself.
	Attr(ctx context.Context, name string) (value string, ok bool, err error)
	// AttrOf returns the named attribute of the first descendant matching
	// selector.
	AttrOf(ctx context.Context, selector, name string) (value string, ok bool, err error)
}

// Browser is the injected browser-control port. The crawl loop, the
// navigation engine, and the site adapters depend only on this surface so
// they can be exercised against a fake instead of a live browser.
type Browser interface {
	Navigate(ctx context.Context, rawURL string, wait WaitCondition, timeout time.Duration) (PageInfo, error)
	Content(ctx context.Context) (string, error)
	Query(ctx context.Context, selector string) ([]Element, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	CurrentURL(ctx context.Context) (string, error)
	SetCookie(ctx context.Context, name, value, domain string) error
	// Rotate discards the current browser context and replaces it with a
	// fresh one carrying a new user agent. The old context is fully torn
	// down before the new one is created.
	Rotate(ctx context.Context) error
	Close(ctx context.Context) error
}

// Navigator performs one logical navigation, absorbing retries, backoff, and
// session rotation. Implementations return ErrBlocked, ErrRateLimited, or
// ErrNavigationFailed once the retry budget is exhausted.
type Navigator interface {
	Navigate(ctx context.Context, rawURL string) error
}

// SiteAdapter is the per-platform capability set consumed by the crawl loop.
type SiteAdapter interface {
	Platform() Platform
	// BuildSearchURL renders the listing URL for a 1-indexed page.
	BuildSearchURL(req CrawlRequest, page int) string
	// JobCards returns the job-card elements on the currently loaded page.
	JobCards(ctx context.Context) ([]Element, error)
	// ParseJobCard extracts a JobRecord from one card. It returns (nil, nil)
	// when the card lacks a title, the only mandatory field; all other
	// fields are best-effort.
	ParseJobCard(ctx context.Context, el Element) (*JobRecord, error)
	HasNextPage(ctx context.Context) (bool, error)
	GoToNextPage(ctx context.Context) (bool, error)
}

// CheckpointStore persists crawl progress between pages.
type CheckpointStore interface {
	Save(ctx context.Context, cp Checkpoint) error
	// Load returns nil when no resumable checkpoint exists for the key,
	// including when the stored snapshot is stale or unreadable.
	Load(ctx context.Context, platform Platform, keyword, location string) (*Checkpoint, error)
}

// JobSink receives the records gathered by a crawl. Implementations must
// tolerate concurrent writers and deduplicate against previously stored URLs.
type JobSink interface {
	SaveJobs(ctx context.Context, jobs []JobRecord) (saved int, err error)
}

// JobLister reads stored records back out of a sink, newest first. An empty
// platform matches every platform.
type JobLister interface {
	ListJobs(ctx context.Context, platform Platform, limit, offset int) ([]JobRecord, error)
}

// JobStatusStore persists the externally visible scrape-job lifecycle.
type JobStatusStore interface {
	CreateJob(ctx context.Context, job ScrapeJob) error
	UpdateJob(ctx context.Context, job ScrapeJob) error
	GetJob(ctx context.Context, id string) (ScrapeJob, error)
}

// Clock abstracts time for staleness checks and timestamps.
type Clock interface {
	Now() time.Time
}
