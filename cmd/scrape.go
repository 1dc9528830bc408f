package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

// newScrapeCmd creates the one-shot 'scrape' subcommand. It runs a single
// crawl in the foreground and optionally writes the gathered listings as
// JSON.
func newScrapeCmd() *cobra.Command {
	var (
		platform   string
		keyword    string
		location   string
		experience string
		pages      int
		resume     bool
		output     string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs a single crawl in the foreground",
		Long: `Scrapes one platform for a keyword/location pair and prints a
summary. Use --resume to continue from a recent checkpoint after a crash or
block, and --output to export the listings as JSON.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := a.Logger()

			if pages == 0 {
				pages = a.Config().Scraper.DefaultPages
			}
			req := scraper.CrawlRequest{
				Platform:        scraper.Platform(platform),
				Keyword:         keyword,
				Location:        location,
				ExperienceLevel: experience,
				PageBudget:      pages,
			}
			if err := req.Validate(); err != nil {
				return err
			}

			job, err := a.Tracker().Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := a.Runner().Run(cmd.Context(), job, resume); err != nil {
				logger.Warn("crawl finished with error", zap.Error(err))
			}

			final, err := a.Tracker().Get(cmd.Context(), job.ID)
			if err != nil {
				return err
			}
			fmt.Printf("scrape %s: status=%s found=%d saved=%d\n",
				final.ID, final.Status, final.JobsFound, final.JobsSaved)
			if final.ErrorMessage != "" {
				fmt.Printf("error: %s\n", final.ErrorMessage)
			}

			if output != "" {
				records := []scraper.JobRecord{}
				if final.JobsSaved > 0 {
					records, err = a.JobLister().ListJobs(cmd.Context(), req.Platform, final.JobsSaved, 0)
					if err != nil {
						return err
					}
				}
				if err := writeListingsJSON(output, records); err != nil {
					return err
				}
				logger.Info("listings exported",
					zap.String("path", output), zap.Int("jobs", len(records)))
			}
			if final.Status == scraper.JobStatusFailed {
				return fmt.Errorf("scrape failed: %s", final.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "naukri", "platform to scrape (naukri, linkedin, instahire, api_source)")
	cmd.Flags().StringVar(&keyword, "keyword", "", "search keyword (required)")
	cmd.Flags().StringVar(&location, "location", "", "search location")
	cmd.Flags().StringVar(&experience, "experience", "", "experience level filter")
	cmd.Flags().IntVar(&pages, "pages", 0, "listing pages to visit (default from config)")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from a recent checkpoint")
	cmd.Flags().StringVar(&output, "output", "", "write the scraped listings as JSON to this path")
	_ = cmd.MarkFlagRequired("keyword")

	return cmd
}

func writeListingsJSON(path string, jobs []scraper.JobRecord) error {
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode listings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write listings: %w", err)
	}
	return nil
}
