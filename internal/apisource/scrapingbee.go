package apisource

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/autoapply/jobscout/internal/scraper"
)

const (
	scrapingBeeDefaultURL = "https://app.scrapingbee.com/api/v1/"
	naukriListingBase     = "https://www.naukri.com"

	// scrapingBeeSkillCap bounds the tags kept per card.
	scrapingBeeSkillCap = 10
)

// ScrapingBeeClient scrapes Naukri listing pages through the ScrapingBee
// rendering proxy, for when direct browser sessions keep getting blocked.
// Each page fetch costs API credits, so PageBudget should stay small.
type ScrapingBeeClient struct {
	apiKey    string
	baseURL   string
	collector *colly.Collector
	limiter   *rate.Limiter
	clock     scraper.Clock
	logger    *zap.Logger
}

// NewScrapingBeeClient builds a ScrapingBee-backed Naukri searcher.
func NewScrapingBeeClient(apiKey string, limiter *rate.Limiter, clock scraper.Clock, logger *zap.Logger) (*ScrapingBeeClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("scrapingbee api key is required")
	}
	collector := colly.NewCollector()
	collector.AllowURLRevisit = true
	// Rendering through the proxy is slow; the upstream allows up to two
	// minutes per request.
	collector.SetRequestTimeout(2 * time.Minute)

	return &ScrapingBeeClient{
		apiKey:    apiKey,
		baseURL:   scrapingBeeDefaultURL,
		collector: collector,
		limiter:   limiter,
		clock:     clock,
		logger:    logger.With(zap.String("searcher", "scrapingbee")),
	}, nil
}

// Source implements Searcher.
func (c *ScrapingBeeClient) Source() string { return "scrapingbee" }

// Search fetches up to req.PageBudget Naukri listing pages through the proxy
// and parses their cards. A failure on the first page is fatal; later pages
// are skipped with a warning, keeping what was already gathered.
func (c *ScrapingBeeClient) Search(ctx context.Context, req scraper.CrawlRequest, limit int) ([]scraper.JobRecord, error) {
	pages := req.PageBudget
	if pages < 1 {
		pages = 1
	}

	var jobs []scraper.JobRecord
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return jobs, err
		}
		if limit > 0 && len(jobs) >= limit {
			break
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return jobs, err
			}
		}

		listingURL := c.listingURL(req, page)
		c.logger.Info("fetching page via proxy",
			zap.Int("page", page), zap.String("url", listingURL))

		body, err := c.fetch(ctx, listingURL)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("scrapingbee page 1: %w", err)
			}
			c.logger.Warn("page fetch failed, skipping",
				zap.Int("page", page), zap.Error(err))
			continue
		}

		pageJobs, err := c.parseListing(body)
		if err != nil {
			return jobs, err
		}
		c.logger.Info("page parsed", zap.Int("page", page), zap.Int("jobs", len(pageJobs)))
		jobs = append(jobs, pageJobs...)
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// listingURL renders the slug-style Naukri URL the proxy should load.
func (c *ScrapingBeeClient) listingURL(req scraper.CrawlRequest, page int) string {
	keyword := strings.ReplaceAll(strings.ToLower(req.Keyword), " ", "-")
	var listing string
	if req.Location != "" {
		location := strings.ReplaceAll(strings.ToLower(req.Location), " ", "-")
		location = strings.ReplaceAll(location, ",", "")
		listing = fmt.Sprintf("%s/%s-jobs-in-%s", naukriListingBase, keyword, location)
	} else {
		listing = fmt.Sprintf("%s/%s-jobs", naukriListingBase, keyword)
	}
	if page > 1 {
		listing = fmt.Sprintf("%s-%d", listing, page)
	}
	return listing
}

// fetch retrieves one rendered page through the proxy.
func (c *ScrapingBeeClient) fetch(ctx context.Context, listingURL string) ([]byte, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("url", listingURL)
	params.Set("render_js", "true")
	params.Set("premium_proxy", "true")
	params.Set("country_code", "in")

	collector := c.collector.Clone()
	type fetchResult struct {
		body []byte
		err  error
	}
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode != 200 {
			send(fetchResult{err: fmt.Errorf("proxy returned status %d", r.StatusCode)})
			return
		}
		send(fetchResult{body: append([]byte{}, r.Body...)})
	})
	collector.OnError(func(_ *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	if err := collector.Visit(c.baseURL + "?" + params.Encode()); err != nil {
		return nil, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return res.body, res.err
	default:
		return nil, errors.New("proxy fetch produced no result")
	}
}

// parseListing extracts job cards from a rendered Naukri page.
func (c *ScrapingBeeClient) parseListing(body []byte) ([]scraper.JobRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing listing html: %w", err)
	}

	pageText := strings.ToLower(doc.Text())
	if strings.Contains(pageText, "access denied") || strings.Contains(pageText, "blocked") {
		return nil, fmt.Errorf("proxy fetch: %w", scraper.ErrBlocked)
	}

	cards := doc.Find("article[class*='jobTuple'], article[class*='job-tuple']")
	if cards.Length() == 0 {
		cards = doc.Find("div[class*='srp-jobtuple'], div[class*='cust-job-tuple']")
	}
	if cards.Length() == 0 {
		cards = doc.Find("div[data-job-id]")
	}

	var jobs []scraper.JobRecord
	cards.Each(func(_ int, card *goquery.Selection) {
		if rec := c.parseCard(card); rec != nil {
			jobs = append(jobs, *rec)
		}
	})
	return jobs, nil
}

func (c *ScrapingBeeClient) parseCard(card *goquery.Selection) *scraper.JobRecord {
	titleEl := card.Find("a[class*='title'], a[class*='jobTitle']").First()
	title := scraper.CleanText(titleEl.Text())
	if title == "" {
		return nil
	}

	rec := &scraper.JobRecord{
		Title:          title,
		Company:        "Unknown",
		SourcePlatform: scraper.PlatformAPISource,
		ScrapedAt:      c.clock.Now(),
	}

	if href, ok := titleEl.Attr("href"); ok && href != "" {
		if strings.HasPrefix(href, "/") {
			href = naukriListingBase + href
		}
		rec.URL = href
	}
	if company := scraper.CleanText(card.Find("a[class*='comp-name'], span[class*='comp-name'], a[class*='company'], span[class*='company']").First().Text()); company != "" {
		rec.Company = company
	}
	rec.ExperienceRequired = scraper.CleanText(card.Find("span[class*='exp'], li[class*='exp']").First().Text())

	if salaryText := scraper.CleanText(card.Find("span[class*='sal'], li[class*='sal']").First().Text()); salaryText != "" &&
		!strings.Contains(strings.ToLower(salaryText), "not disclosed") {
		parsed := scraper.ParseSalary(salaryText)
		rec.SalaryMin = parsed.Min
		rec.SalaryMax = parsed.Max
	}

	rec.Location = scraper.CleanText(card.Find("span[class*='loc'], li[class*='loc']").First().Text())
	rec.DescriptionSnippet = snippet(scraper.CleanText(card.Find("div[class*='job-desc'], span[class*='ellipsis']").First().Text()))

	card.Find("ul[class*='tag'] li, div[class*='skill'] span, ul[class*='tag'] a").Each(func(_ int, s *goquery.Selection) {
		if len(rec.Skills) >= scrapingBeeSkillCap {
			return
		}
		if tag := scraper.CleanText(s.Text()); tag != "" {
			rec.Skills = append(rec.Skills, tag)
		}
	})
	return rec
}
