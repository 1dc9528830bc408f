package apisource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autoapply/jobscout/internal/scraper"
)

const serperDefaultURL = "https://google.serper.dev/search"

// serperMaxResults is the upstream per-request cap.
const serperMaxResults = 100

// jobResultKeywords gate which search results count as job listings.
var jobResultKeywords = []string{"job", "career", "hiring", "vacancy", "opening", "position"}

// SerperClient searches Google for job listings through the serper.dev API.
// The free tier allows 2,500 searches per month, so callers should keep the
// limiter conservative.
type SerperClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	clock   scraper.Clock
	logger  *zap.Logger
}

// NewSerperClient builds a serper.dev searcher. limiter may be nil to
// disable client-side throttling.
func NewSerperClient(apiKey string, limiter *rate.Limiter, clock scraper.Clock, logger *zap.Logger) (*SerperClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("serper api key is required")
	}
	return &SerperClient{
		apiKey:  apiKey,
		baseURL: serperDefaultURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		clock:   clock,
		logger:  logger.With(zap.String("searcher", "serper")),
	}, nil
}

// Source implements Searcher.
func (c *SerperClient) Source() string { return "serper" }

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
	GL  string `json:"gl"`
	HL  string `json:"hl"`
}

type serperResponse struct {
	Organic []serperResult `json:"organic"`
}

type serperResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search queries Google for "<keyword> jobs [in <location>]" and converts the
// organic results that look like job listings.
func (c *SerperClient) Search(ctx context.Context, req scraper.CrawlRequest, limit int) ([]scraper.JobRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	query := req.Keyword + " jobs"
	if req.Location != "" {
		query = req.Keyword + " jobs in " + req.Location
	}
	if limit <= 0 || limit > serperMaxResults {
		limit = serperMaxResults
	}

	body, err := json.Marshal(serperRequest{Q: query, Num: limit, GL: "in", HL: "en"})
	if err != nil {
		return nil, fmt.Errorf("encoding serper request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("X-API-KEY", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Info("searching", zap.String("query", query), zap.Int("limit", limit))
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("serper: invalid api key")
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("serper: %w", scraper.ErrRateLimited)
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serper: unexpected status %d: %s", resp.StatusCode, msg)
	}

	var parsed serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding serper response: %w", err)
	}
	if len(parsed.Organic) == 0 {
		c.logger.Warn("no results", zap.String("query", query))
		return nil, nil
	}

	location := req.Location
	if location == "" {
		location = "India"
	}
	var jobs []scraper.JobRecord
	for _, result := range parsed.Organic {
		if rec := c.convert(result, req.Keyword, location); rec != nil {
			jobs = append(jobs, *rec)
		}
	}
	c.logger.Info("search complete", zap.Int("jobs", len(jobs)))
	return jobs, nil
}

// convert turns one organic result into a record, or nil when the result
// does not look like a job listing.
func (c *SerperClient) convert(result serperResult, keyword, location string) *scraper.JobRecord {
	haystack := strings.ToLower(result.Title + " " + result.Snippet)
	matched := false
	for _, kw := range jobResultKeywords {
		if strings.Contains(haystack, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return nil
	}

	company := "Various Companies"
	if idx := strings.LastIndex(result.Title, " at "); idx >= 0 {
		company = strings.TrimSpace(result.Title[idx+len(" at "):])
	} else if parts := strings.Split(result.Title, " - "); len(parts) > 1 {
		company = strings.TrimSpace(parts[len(parts)-1])
	}

	return &scraper.JobRecord{
		Title:              keyword + " - " + boardNameFromLink(result.Link),
		Company:            company,
		Location:           location,
		ExperienceRequired: extractExperience(result.Snippet),
		DescriptionSnippet: snippet(result.Snippet),
		URL:                result.Link,
		Skills:             extractSkills(result.Title + " " + result.Snippet),
		SourcePlatform:     scraper.PlatformAPISource,
		ScrapedAt:          c.clock.Now(),
	}
}

// boardNameFromLink guesses which job board a result points at.
func boardNameFromLink(link string) string {
	lower := strings.ToLower(link)
	switch {
	case strings.Contains(lower, "naukri"):
		return "Naukri"
	case strings.Contains(lower, "linkedin"):
		return "LinkedIn"
	case strings.Contains(lower, "indeed"):
		return "Indeed"
	case strings.Contains(lower, "glassdoor"):
		return "Glassdoor"
	case strings.Contains(lower, "instahyre"):
		return "Instahyre"
	default:
		return "Google Search"
	}
}
