package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/apisource"
	"github.com/autoapply/jobscout/internal/metrics"
	"github.com/autoapply/jobscout/internal/scraper"
	"github.com/autoapply/jobscout/internal/storage/memory"
	"github.com/autoapply/jobscout/internal/tracker"
)

func init() {
	metrics.Init()
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

type stubSearcher struct {
	source string
	jobs   []scraper.JobRecord
	err    error
}

func (s stubSearcher) Source() string { return s.source }

func (s stubSearcher) Search(context.Context, scraper.CrawlRequest, int) ([]scraper.JobRecord, error) {
	return s.jobs, s.err
}

func apiRequest() scraper.CrawlRequest {
	return scraper.CrawlRequest{
		Platform:   scraper.PlatformAPISource,
		Keyword:    "golang",
		PageBudget: 1,
	}
}

func newTestRunner(store *memory.Store, factory BrowserFactory, searchers ...apisource.Searcher) (*Runner, *tracker.Tracker) {
	clock := stubClock{time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
	tr := tracker.New(store, clock, zap.NewNop())
	return New(Config{}, factory, nil, store, tr, searchers, clock, zap.NewNop()), tr
}

func TestRunAPISourceSavesAndCompletes(t *testing.T) {
	store := memory.NewStore()
	r, tr := newTestRunner(store, nil,
		stubSearcher{source: "serper", jobs: []scraper.JobRecord{
			{Title: "Golang Developer", URL: "https://example.com/job/1"},
			{Title: "Golang Developer", URL: "https://example.com/job/1"},
		}},
		stubSearcher{source: "jsearch", jobs: []scraper.JobRecord{
			{Title: "Backend Engineer", URL: "https://example.com/job/2"},
			{Title: "No URL"},
		}},
	)

	job, err := tr.Create(context.Background(), apiRequest())
	require.NoError(t, err)

	require.NoError(t, r.Run(context.Background(), job, false))

	got, err := tr.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusCompleted, got.Status)
	require.Equal(t, 2, got.JobsFound)
	require.Equal(t, 2, got.JobsSaved)
	require.Len(t, store.Listings(), 2)
}

func TestRunAPISourcePartialSearcherFailure(t *testing.T) {
	store := memory.NewStore()
	r, tr := newTestRunner(store, nil,
		stubSearcher{source: "serper", err: errors.New("quota exhausted")},
		stubSearcher{source: "jsearch", jobs: []scraper.JobRecord{
			{Title: "Backend Engineer", URL: "https://example.com/job/2"},
		}},
	)

	job, err := tr.Create(context.Background(), apiRequest())
	require.NoError(t, err)

	// One searcher failing is absorbed as long as another produced results.
	require.NoError(t, r.Run(context.Background(), job, false))

	got, err := tr.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusCompleted, got.Status)
	require.Equal(t, 1, got.JobsSaved)
}

func TestRunAPISourceAllSearchersFail(t *testing.T) {
	store := memory.NewStore()
	r, tr := newTestRunner(store, nil,
		stubSearcher{source: "serper", err: errors.New("quota exhausted")},
	)

	job, err := tr.Create(context.Background(), apiRequest())
	require.NoError(t, err)

	err = r.Run(context.Background(), job, false)
	require.ErrorContains(t, err, "quota exhausted")

	got, err := tr.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusFailed, got.Status)
	require.Contains(t, got.ErrorMessage, "quota exhausted")
}

type stubSeen struct {
	known map[string]bool
}

func (s stubSeen) FilterNew(_ context.Context, urls []string) []string {
	fresh := make([]string, 0, len(urls))
	for _, u := range urls {
		if !s.known[u] {
			fresh = append(fresh, u)
		}
	}
	return fresh
}

func TestRunAppliesSeenFilter(t *testing.T) {
	store := memory.NewStore()
	r, tr := newTestRunner(store, nil,
		stubSearcher{source: "serper", jobs: []scraper.JobRecord{
			{Title: "Golang Developer", URL: "https://example.com/job/1"},
			{Title: "Backend Engineer", URL: "https://example.com/job/2"},
		}},
	)
	r.WithSeenFilter(stubSeen{known: map[string]bool{"https://example.com/job/1": true}})

	job, err := tr.Create(context.Background(), apiRequest())
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background(), job, false))

	got, err := tr.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.JobsFound)
	require.Equal(t, 1, got.JobsSaved)
	require.Len(t, store.Listings(), 1)
}

func TestRunBrowserFactoryFailureFailsJob(t *testing.T) {
	store := memory.NewStore()
	factory := func(context.Context) (scraper.Browser, error) {
		return nil, errors.New("chrome did not start")
	}
	r, tr := newTestRunner(store, factory)

	job, err := tr.Create(context.Background(), scraper.CrawlRequest{
		Platform:   scraper.PlatformNaukri,
		Keyword:    "golang",
		PageBudget: 1,
	})
	require.NoError(t, err)

	err = r.Run(context.Background(), job, false)
	require.ErrorContains(t, err, "chrome did not start")

	got, err := tr.Get(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusFailed, got.Status)
}
