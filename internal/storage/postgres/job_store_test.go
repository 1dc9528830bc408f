package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

func sampleRecord(url string) scraper.JobRecord {
	min := int64(1_000_000)
	max := int64(1_500_000)
	return scraper.JobRecord{
		Title:              "Golang Developer",
		Company:            "Initech",
		Location:           "Pune",
		SalaryMin:          &min,
		SalaryMax:          &max,
		ExperienceRequired: "3-5 years",
		DescriptionSnippet: "Build backend services.",
		URL:                url,
		Skills:             []string{"Go", "PostgreSQL"},
		IsEasyApply:        false,
		SourcePlatform:     scraper.PlatformNaukri,
		ScrapedAt:          time.Unix(1700000000, 0).UTC(),
	}
}

func expectInsert(mock pgxmock.PgxPoolIface, job scraper.JobRecord, inserted int64) {
	mock.ExpectExec("INSERT INTO job_listings").
		WithArgs(
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
		).
		WillReturnResult(pgxmock.NewResult("INSERT", inserted))
}

func TestSaveJobsCountsOnlyNewRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStore(mock, zap.NewNop())
	require.NoError(t, err)

	first := sampleRecord("https://www.naukri.com/job-listings-1")
	dup := sampleRecord("https://www.naukri.com/job-listings-2")

	expectInsert(mock, first, 1)
	// Second row hits the url conflict and is dropped by the database.
	expectInsert(mock, dup, 0)

	saved, err := store.SaveJobs(context.Background(), []scraper.JobRecord{first, dup})
	require.NoError(t, err)
	require.Equal(t, 1, saved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveJobsSkipsRecordsWithoutURL(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStore(mock, zap.NewNop())
	require.NoError(t, err)

	saved, err := store.SaveJobs(context.Background(), []scraper.JobRecord{sampleRecord("")})
	require.NoError(t, err)
	require.Zero(t, saved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewJobStore(mock, zap.NewNop())
	require.NoError(t, err)

	rec := sampleRecord("https://www.naukri.com/job-listings-1")
	rows := pgxmock.NewRows([]string{
		"title", "company", "location", "salary_min", "salary_max",
		"experience_required", "description_snippet", "url", "skills",
		"posted_at", "is_easy_apply", "source_platform", "scraped_at",
	}).AddRow(
		rec.Title, rec.Company, rec.Location, rec.SalaryMin, rec.SalaryMax,
		rec.ExperienceRequired, rec.DescriptionSnippet, rec.URL, rec.Skills,
		rec.PostedAt, rec.IsEasyApply, rec.SourcePlatform, rec.ScrapedAt,
	)
	mock.ExpectQuery("SELECT (.+) FROM job_listings").
		WithArgs("naukri", 10, 0).
		WillReturnRows(rows)

	jobs, err := store.ListJobs(context.Background(), scraper.PlatformNaukri, 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, rec.URL, jobs[0].URL)
	require.Equal(t, rec.Skills, jobs[0].Skills)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewJobStoreRequiresPool(t *testing.T) {
	t.Parallel()

	_, err := NewJobStore(nil, zap.NewNop())
	require.Error(t, err)
}
