package apisource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autoapply/jobscout/internal/scraper"
)

const (
	jsearchDefaultURL = "https://jsearch.p.rapidapi.com/search"
	jsearchHost       = "jsearch.p.rapidapi.com"

	// jsearchPageSize is the fixed upstream page size.
	jsearchPageSize = 10
	// jsearchMaxPages bounds one request; the free tier is 150 requests a
	// month so fan-out stays small.
	jsearchMaxPages = 5
)

// JSearchClient searches jobs through the JSearch API on RapidAPI.
type JSearchClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	clock   scraper.Clock
	logger  *zap.Logger
}

// NewJSearchClient builds a JSearch searcher.
func NewJSearchClient(apiKey string, limiter *rate.Limiter, clock scraper.Clock, logger *zap.Logger) (*JSearchClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("jsearch api key is required")
	}
	return &JSearchClient{
		apiKey:  apiKey,
		baseURL: jsearchDefaultURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		clock:   clock,
		logger:  logger.With(zap.String("searcher", "jsearch")),
	}, nil
}

// Source implements Searcher.
func (c *JSearchClient) Source() string { return "jsearch" }

type jsearchResponse struct {
	Data []jsearchJob `json:"data"`
}

type jsearchJob struct {
	Title          string              `json:"job_title"`
	Employer       string              `json:"employer_name"`
	City           string              `json:"job_city"`
	Country        string              `json:"job_country"`
	MinSalary      *float64            `json:"job_min_salary"`
	MaxSalary      *float64            `json:"job_max_salary"`
	Description    string              `json:"job_description"`
	ApplyLink      string              `json:"job_apply_link"`
	GoogleLink     string              `json:"job_google_link"`
	PostedAt       string              `json:"job_posted_at_datetime_utc"`
	IsRemote       bool                `json:"job_is_remote"`
	EmploymentType string              `json:"job_employment_type"`
	Highlights     map[string][]string `json:"job_highlights"`
}

// Search queries JSearch for "<keyword> [in <location>]".
func (c *JSearchClient) Search(ctx context.Context, req scraper.CrawlRequest, limit int) ([]scraper.JobRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	query := req.Keyword
	if req.Location != "" {
		query += " in " + req.Location
	}
	if limit <= 0 {
		limit = jsearchPageSize * jsearchMaxPages
	}
	pages := (limit + jsearchPageSize - 1) / jsearchPageSize
	if pages < 1 {
		pages = 1
	}
	if pages > jsearchMaxPages {
		pages = jsearchMaxPages
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	params.Set("num_pages", strconv.Itoa(pages))
	params.Set("date_posted", "all")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-RapidAPI-Key", c.apiKey)
	httpReq.Header.Set("X-RapidAPI-Host", jsearchHost)

	c.logger.Info("searching", zap.String("query", query), zap.Int("pages", pages))
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jsearch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("jsearch: %w", scraper.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("jsearch: unexpected status %d: %s", resp.StatusCode, msg)
	}

	var parsed jsearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding jsearch response: %w", err)
	}
	if len(parsed.Data) == 0 {
		c.logger.Warn("no jobs in response", zap.String("query", query))
		return nil, nil
	}

	var jobs []scraper.JobRecord
	for _, j := range parsed.Data {
		if len(jobs) >= limit {
			break
		}
		jobs = append(jobs, c.convert(j, req.Location))
	}
	c.logger.Info("search complete", zap.Int("jobs", len(jobs)))
	return jobs, nil
}

func (c *JSearchClient) convert(j jsearchJob, fallbackLocation string) scraper.JobRecord {
	rec := scraper.JobRecord{
		Title:              orDefault(j.Title, "Unknown"),
		Company:            orDefault(j.Employer, "Unknown"),
		Location:           firstNonEmpty(j.City, j.Country, fallbackLocation),
		ExperienceRequired: extractExperienceFromDescription(j.Description),
		DescriptionSnippet: snippet(j.Description),
		URL:                firstNonEmpty(j.ApplyLink, j.GoogleLink),
		Skills:             skillsFromHighlights(j.Highlights),
		IsEasyApply:        strings.Contains(strings.ToLower(j.ApplyLink), "apply"),
		SourcePlatform:     scraper.PlatformAPISource,
		ScrapedAt:          c.clock.Now(),
	}
	if j.MinSalary != nil {
		v := int64(*j.MinSalary)
		rec.SalaryMin = &v
	}
	if j.MaxSalary != nil {
		v := int64(*j.MaxSalary)
		rec.SalaryMax = &v
	}
	if j.PostedAt != "" {
		if t, err := time.Parse(time.RFC3339, j.PostedAt); err == nil {
			rec.PostedAt = &t
		}
	}
	return rec
}

// extractExperienceFromDescription only trusts the pattern when the text
// actually talks about years of experience.
func extractExperienceFromDescription(description string) string {
	lower := strings.ToLower(description)
	if !strings.Contains(lower, "year") || !strings.Contains(lower, "experience") {
		return ""
	}
	return extractExperience(description)
}

// skillsFromHighlights treats short qualification bullets as skill tags.
func skillsFromHighlights(highlights map[string][]string) []string {
	quals := highlights["Qualifications"]
	var skills []string
	for _, q := range quals {
		if len(skills) >= 5 {
			break
		}
		if len(q) < 50 {
			skills = append(skills, q)
		}
	}
	return skills
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
