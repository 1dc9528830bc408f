package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/autoapply/jobscout/internal/scraper"
)

func sampleScrapeJob() scraper.ScrapeJob {
	return scraper.ScrapeJob{
		ID: "7f9c36ea-8a6f-4a57-9d4f-1c2a3b4c5d6e",
		Request: scraper.CrawlRequest{
			Platform:        scraper.PlatformNaukri,
			Keyword:         "golang",
			Location:        "Pune",
			ExperienceLevel: "3-5",
			PageBudget:      3,
			ExtraFilters:    map[string]string{"wfhType": "2"},
		},
		Status:    scraper.JobStatusPending,
		CreatedAt: time.Unix(1700000000, 0).UTC(),
	}
}

func TestCreateJob(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStatusStore(mock)
	require.NoError(t, err)

	job := sampleScrapeJob()
	mock.ExpectExec("INSERT INTO scrape_jobs").
		WithArgs(
			job.ID,
			job.Request.Platform,
			job.Request.Keyword,
			job.Request.Location,
			job.Request.ExperienceLevel,
			job.Request.PageBudget,
			[]byte(`{"wfhType":"2"}`),
			job.Status,
			job.Progress,
			job.JobsFound,
			job.JobsSaved,
			job.ErrorMessage,
			job.CreatedAt,
			job.StartedAt,
			job.CompletedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobMissingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStatusStore(mock)
	require.NoError(t, err)

	job := sampleScrapeJob()
	job.Status = scraper.JobStatusRunning
	mock.ExpectExec("UPDATE scrape_jobs").
		WithArgs(
			job.ID,
			job.Status,
			job.Progress,
			job.JobsFound,
			job.JobsSaved,
			job.ErrorMessage,
			job.StartedAt,
			job.CompletedAt,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.UpdateJob(context.Background(), job)
	require.ErrorIs(t, err, scraper.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStatusStore(mock)
	require.NoError(t, err)

	want := sampleScrapeJob()
	rows := pgxmock.NewRows([]string{
		"id", "platform", "keyword", "location", "experience_level",
		"page_budget", "extra_filters", "status", "progress", "jobs_found",
		"jobs_saved", "error_message", "created_at", "started_at", "completed_at",
	}).AddRow(
		want.ID, want.Request.Platform, want.Request.Keyword,
		want.Request.Location, want.Request.ExperienceLevel,
		want.Request.PageBudget, []byte(`{"wfhType":"2"}`), want.Status,
		want.Progress, want.JobsFound, want.JobsSaved, want.ErrorMessage,
		want.CreatedAt, want.StartedAt, want.CompletedAt,
	)
	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs").
		WithArgs(want.ID).
		WillReturnRows(rows)

	got, err := store.GetJob(context.Background(), want.ID)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewStatusStore(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM scrape_jobs").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, scraper.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
