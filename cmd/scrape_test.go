package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/autoapply/jobscout/internal/scraper"
)

func TestWriteListingsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	records := []scraper.JobRecord{
		{
			Title:          "Backend Engineer",
			Company:        "Acme",
			URL:            "https://example.com/j/1",
			SourcePlatform: scraper.PlatformNaukri,
			ScrapedAt:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		},
	}

	require.NoError(t, writeListingsJSON(path, records))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []scraper.JobRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, records, got)
}

func TestWriteListingsJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")

	require.NoError(t, writeListingsJSON(path, []scraper.JobRecord{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))
}
