package adapters

import (
	"context"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

const (
	instahireBaseURL   = "https://www.instahyre.com"
	instahireSearchURL = "https://www.instahyre.com/search-jobs"
)

var instahireSelectors = struct {
	jobCard    string
	title      string
	company    string
	location   string
	salary     string
	experience string
	skills     string
	postedDate string
	jobURL     string
	nextPage   string
}{
	jobCard:    ".job-card, .job-listing-item, [data-job-id]",
	title:      ".job-title, .position-title, h3",
	company:    ".company-name, .employer-name",
	location:   ".location, .job-location",
	salary:     ".salary, .compensation",
	experience: ".experience, .exp-required",
	skills:     ".skills span, .tags a",
	postedDate: ".posted-date, .date",
	jobURL:     ".job-title a, .view-job",
	nextPage:   ".pagination .next, button[aria-label='Next']",
}

// Instahire scrapes instahyre.com listing pages.
type Instahire struct {
	browser scraper.Browser
	clock   scraper.Clock
	logger  *zap.Logger
}

// NewInstahire builds the Instahire adapter.
func NewInstahire(deps Deps) *Instahire {
	return &Instahire{
		browser: deps.Browser,
		clock:   deps.Clock,
		logger:  deps.Logger.With(zap.String("adapter", "instahire")),
	}
}

// Platform implements scraper.SiteAdapter.
func (a *Instahire) Platform() scraper.Platform { return scraper.PlatformInstahire }

// BuildSearchURL renders the query-style search URL.
func (a *Instahire) BuildSearchURL(req scraper.CrawlRequest, page int) string {
	params := url.Values{}
	params.Set("q", req.Keyword)
	if req.Location != "" {
		params.Set("location", req.Location)
	}
	if req.ExperienceLevel != "" {
		params.Set("exp", req.ExperienceLevel)
	}
	if page > 1 {
		params.Set("page", strconv.Itoa(page))
	}
	return instahireSearchURL + "?" + params.Encode()
}

// JobCards returns the visible cards.
func (a *Instahire) JobCards(ctx context.Context) ([]scraper.Element, error) {
	cards, err := a.browser.Query(ctx, instahireSelectors.jobCard)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		a.logger.Warn("no job cards found")
	}
	return cards, nil
}

// ParseJobCard extracts one listing from a card.
func (a *Instahire) ParseJobCard(ctx context.Context, el scraper.Element) (*scraper.JobRecord, error) {
	title := textOf(ctx, el, instahireSelectors.title)
	if title == "" {
		return nil, nil
	}

	rec := &scraper.JobRecord{
		Title:          title,
		Company:        textOf(ctx, el, instahireSelectors.company),
		Location:       textOf(ctx, el, instahireSelectors.location),
		SourcePlatform: scraper.PlatformInstahire,
		ScrapedAt:      a.clock.Now(),
	}

	if salaryText := textOf(ctx, el, instahireSelectors.salary); salaryText != "" {
		parsed := scraper.ParseSalary(salaryText)
		rec.SalaryMin = parsed.Min
		rec.SalaryMax = parsed.Max
	}
	rec.ExperienceRequired = textOf(ctx, el, instahireSelectors.experience)
	rec.Skills = collectSkills(ctx, el, instahireSelectors.skills)

	if dateText := textOf(ctx, el, instahireSelectors.postedDate); dateText != "" {
		rec.PostedAt = scraper.ParsePostedDate(dateText, a.clock.Now())
	}

	if href := attrOf(ctx, el, instahireSelectors.jobURL, "href"); href != "" {
		rec.URL = absoluteURL(instahireBaseURL, href)
	} else {
		rec.URL = fallbackURL(instahireBaseURL, rec.Title, rec.Company)
	}
	return rec, nil
}

// HasNextPage reports whether the next control is present and enabled.
func (a *Instahire) HasNextPage(ctx context.Context) (bool, error) {
	buttons, err := a.browser.Query(ctx, instahireSelectors.nextPage)
	if err != nil || len(buttons) == 0 {
		return false, err
	}
	_, disabled, err := buttons[0].Attr(ctx, "disabled")
	if err != nil {
		return false, err
	}
	return !disabled, nil
}

// GoToNextPage clicks the next control when present.
func (a *Instahire) GoToNextPage(ctx context.Context) (bool, error) {
	ok, err := a.HasNextPage(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := a.browser.Click(ctx, instahireSelectors.nextPage); err != nil {
		return false, err
	}
	return true, nil
}
