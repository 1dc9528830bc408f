package adapters

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

const naukriBaseURL = "https://www.naukri.com"

// naukriSelectors maps logical fields to CSS selectors. The board ships
// several card layouts at once, so most entries are comma lists tried in
// document order.
var naukriSelectors = struct {
	jobCards   []string
	title      string
	company    string
	location   string
	experience string
	salary     string
	skills     string
	desc       string
	postedDate string
	jobURL     string
	pagination string
	nextPage   string
}{
	jobCards:   []string{"article.jobTuple", ".cust-job-tuple", "[data-job-id]"},
	title:      ".title, .jobTitle a, .info h2 a",
	company:    ".comp-name, .companyInfo a, .info .company-name",
	location:   ".loc, .location, .locWdth",
	experience: ".exp, .experience",
	salary:     ".sal, .salary",
	skills:     ".tags li, .skills-container span",
	desc:       ".job-desc, .job-description",
	postedDate: ".date, .posted-date, .job-post-day",
	jobURL:     "a.title, .info h2 a, [href*='/job-listings']",
	pagination: ".pagination a",
	nextPage:   ".fright a",
}

// naukriExperienceParams maps the request's experience level to the board's
// query parameter values.
var naukriExperienceParams = map[string]string{
	"fresher": "0",
	"0-1":     "0to1",
	"1-3":     "1to5",
	"3-5":     "3to6",
	"5-10":    "5to10",
	"10+":     "10to15",
}

var (
	naukriSlugPattern   = regexp.MustCompile(`[^a-z0-9-]`)
	naukriPageNoPattern = regexp.MustCompile(`pageNo=(\d+)`)
)

// Naukri scrapes naukri.com listing pages.
type Naukri struct {
	browser scraper.Browser
	clock   scraper.Clock
	logger  *zap.Logger
}

// NewNaukri builds the Naukri adapter.
func NewNaukri(deps Deps) *Naukri {
	return &Naukri{
		browser: deps.Browser,
		clock:   deps.Clock,
		logger:  deps.Logger.With(zap.String("adapter", "naukri")),
	}
}

// Platform implements scraper.SiteAdapter.
func (a *Naukri) Platform() scraper.Platform { return scraper.PlatformNaukri }

// BuildSearchURL renders the slug-style search URL, e.g.
// https://www.naukri.com/golang-developer-jobs-in-bengaluru?experience=3to6&pageNo=2.
func (a *Naukri) BuildSearchURL(req scraper.CrawlRequest, page int) string {
	slug := strings.ToLower(req.Keyword)
	slug = strings.NewReplacer(" ", "-", "_", "-").Replace(slug)
	slug = naukriSlugPattern.ReplaceAllString(slug, "")

	var base string
	if req.Location != "" {
		locSlug := strings.ReplaceAll(strings.ToLower(req.Location), " ", "-")
		base = naukriBaseURL + "/" + slug + "-jobs-in-" + locSlug
	} else {
		base = naukriBaseURL + "/" + slug + "-jobs"
	}

	params := url.Values{}
	if req.ExperienceLevel != "" {
		if v, ok := naukriExperienceParams[strings.ToLower(req.ExperienceLevel)]; ok {
			params.Set("experience", v)
		}
	}
	if v := req.ExtraFilters["salary_min"]; v != "" {
		params.Set("salaryMin", v)
	}
	if v := req.ExtraFilters["salary_max"]; v != "" {
		params.Set("salaryMax", v)
	}
	if page > 1 {
		params.Set("pageNo", strconv.Itoa(page))
	}
	if req.ExtraFilters["work_from_home"] == "true" {
		params.Set("wfhType", "1")
	}
	if v := req.ExtraFilters["posted_within"]; v != "" {
		// 1 = today, 3 = last 3 days, 7 = last week.
		params.Set("jdAgeInDays", v)
	}
	if v := req.ExtraFilters["company_type"]; v != "" {
		params.Set("compType", v)
	}

	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}

// JobCards tries each known card layout and returns the first non-empty set.
func (a *Naukri) JobCards(ctx context.Context) ([]scraper.Element, error) {
	for _, selector := range naukriSelectors.jobCards {
		cards, err := a.browser.Query(ctx, selector)
		if err != nil {
			return nil, err
		}
		if len(cards) > 0 {
			a.logger.Debug("found job cards",
				zap.String("selector", selector), zap.Int("count", len(cards)))
			return cards, nil
		}
	}
	a.logger.Warn("no job cards found with any selector")
	return nil, nil
}

// ParseJobCard extracts one listing. Title is the only mandatory field; a
// card without one yields (nil, nil).
func (a *Naukri) ParseJobCard(ctx context.Context, el scraper.Element) (*scraper.JobRecord, error) {
	title := textOf(ctx, el, naukriSelectors.title)
	if title == "" {
		title = scraper.CleanText(ownAttr(ctx, el, "data-title"))
	}
	if title == "" {
		return nil, nil
	}

	company := textOf(ctx, el, naukriSelectors.company)
	if company == "" {
		company = ownAttr(ctx, el, "data-company-name")
	}
	if company == "" {
		company = "Unknown"
	}

	rec := &scraper.JobRecord{
		Title:          title,
		Company:        company,
		Location:       textOf(ctx, el, naukriSelectors.location),
		SourcePlatform: scraper.PlatformNaukri,
		ScrapedAt:      a.clock.Now(),
	}

	if expText := textOf(ctx, el, naukriSelectors.experience); expText != "" {
		rec.ExperienceRequired = expText
	}

	if salaryText := textOf(ctx, el, naukriSelectors.salary); salaryText != "" &&
		!strings.Contains(strings.ToLower(salaryText), "not disclosed") {
		parsed := scraper.ParseSalary(salaryText)
		rec.SalaryMin = parsed.Min
		rec.SalaryMax = parsed.Max
	}

	rec.Skills = collectSkills(ctx, el, naukriSelectors.skills)
	rec.DescriptionSnippet = textOf(ctx, el, naukriSelectors.desc)

	if dateText := textOf(ctx, el, naukriSelectors.postedDate); dateText != "" {
		rec.PostedAt = scraper.ParsePostedDate(dateText, a.clock.Now())
	}

	if href := attrOf(ctx, el, naukriSelectors.jobURL, "href"); href != "" {
		rec.URL = absoluteURL(naukriBaseURL, href)
	} else if jobID := ownAttr(ctx, el, "data-job-id"); jobID != "" {
		rec.URL = naukriBaseURL + "/job-listings-" + jobID
	} else {
		rec.URL = fallbackURL(naukriBaseURL, rec.Title, rec.Company)
	}
	return rec, nil
}

// HasNextPage checks the explicit next link first, then falls back to
// comparing the current pageNo against the last pagination link.
func (a *Naukri) HasNextPage(ctx context.Context) (bool, error) {
	if ok, err := a.browser.Exists(ctx, naukriSelectors.nextPage); err == nil && ok {
		return true, nil
	}

	current := 1
	if loc, err := a.browser.CurrentURL(ctx); err == nil {
		if m := naukriPageNoPattern.FindStringSubmatch(loc); m != nil {
			current, _ = strconv.Atoi(m[1])
		}
	}
	links, err := a.browser.Query(ctx, naukriSelectors.pagination)
	if err != nil || len(links) == 0 {
		return false, err
	}
	href, ok, err := links[len(links)-1].Attr(ctx, "href")
	if err != nil || !ok {
		return false, err
	}
	if m := naukriPageNoPattern.FindStringSubmatch(href); m != nil {
		last, _ := strconv.Atoi(m[1])
		return current < last, nil
	}
	return false, nil
}

// GoToNextPage clicks the next link when present.
func (a *Naukri) GoToNextPage(ctx context.Context) (bool, error) {
	ok, err := a.browser.Exists(ctx, naukriSelectors.nextPage)
	if err != nil || !ok {
		return false, err
	}
	if err := a.browser.Click(ctx, naukriSelectors.nextPage); err != nil {
		return false, err
	}
	return true, nil
}
