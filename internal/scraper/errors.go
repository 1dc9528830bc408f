package scraper

import "errors"

// Navigation error taxonomy. RateLimited and Blocked are produced while the
// retry budget lasts only internally; the crawl loop sees them when retries
// are exhausted.
var (
	// ErrRateLimited signals an HTTP 429 or an equivalent throttling
	// response from the target site.
	ErrRateLimited = errors.New("rate limited by target site")

	// ErrBlocked signals an HTTP 403 or page content matching the
	// block-indicator word list.
	ErrBlocked = errors.New("blocked by target site")

	// ErrNavigationFailed wraps a generic transport or timeout failure once
	// the retry budget is exhausted.
	ErrNavigationFailed = errors.New("navigation failed")

	// ErrAuthWall signals that the platform demands authentication before
	// serving listings. Distinct from ErrBlocked: rotating the session will
	// not help, the caller needs credentials.
	ErrAuthWall = errors.New("authentication required by target site")
)

// ErrJobNotFound is returned by JobStatusStore implementations when the
// requested scrape job does not exist.
var ErrJobNotFound = errors.New("scrape job not found")
