package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

const (
	linkedInBaseURL = "https://www.linkedin.com"
	linkedInJobsURL = "https://www.linkedin.com/jobs/search"

	// linkedInPageSize is the fixed number of results per listing page; the
	// start query parameter is derived from it.
	linkedInPageSize = 25
)

var linkedInSelectors = struct {
	jobCard    string
	title      string
	company    string
	location   string
	postedDate string
	easyApply  string
	nextPage   string
	loginForm  string
	authWall   string
}{
	jobCard:    ".jobs-search-results__list-item, .job-card-container",
	title:      ".job-card-list__title, .job-card-container__link",
	company:    ".job-card-container__primary-description, .job-card-container__company-name",
	location:   ".job-card-container__metadata-item, .job-card-container__metadata-wrapper",
	postedDate: ".job-card-container__footer-item time",
	easyApply:  ".job-card-container__apply-method, [data-test-job-apply-method]",
	nextPage:   "button[aria-label='Next']",
	loginForm:  "#session_key",
	authWall:   ".authwall",
}

// linkedInExperienceParams maps experience levels to the f_E codes.
var linkedInExperienceParams = map[string]string{
	"fresher":    "1",
	"entry":      "2",
	"associate":  "3",
	"mid-senior": "4",
	"director":   "5",
	"executive":  "6",
}

// linkedInJobTypeParams maps job types to the f_JT codes.
var linkedInJobTypeParams = map[string]string{
	"full-time":  "F",
	"part-time":  "P",
	"contract":   "C",
	"temporary":  "T",
	"internship": "I",
}

// LinkedIn scrapes linkedin.com job search pages. Anonymous sessions hit an
// auth wall quickly; supply a li_at session cookie for useful results.
type LinkedIn struct {
	browser scraper.Browser
	clock   scraper.Clock
	logger  *zap.Logger
	cookie  string

	authenticated bool
}

// NewLinkedIn builds the LinkedIn adapter.
func NewLinkedIn(deps Deps) *LinkedIn {
	return &LinkedIn{
		browser: deps.Browser,
		clock:   deps.Clock,
		logger:  deps.Logger.With(zap.String("adapter", "linkedin")),
		cookie:  deps.LinkedInCookie,
	}
}

// Platform implements scraper.SiteAdapter.
func (a *LinkedIn) Platform() scraper.Platform { return scraper.PlatformLinkedIn }

// Authenticate installs the session cookie and verifies it by loading the
// feed. Safe to call without a cookie; the adapter then runs anonymously.
func (a *LinkedIn) Authenticate(ctx context.Context) error {
	if a.cookie == "" {
		a.logger.Warn("no session cookie configured, scraping anonymously")
		return nil
	}
	if err := a.browser.SetCookie(ctx, "li_at", a.cookie, ".linkedin.com"); err != nil {
		return fmt.Errorf("setting session cookie: %w", err)
	}
	if _, err := a.browser.Navigate(ctx, linkedInBaseURL+"/feed/", scraper.WaitDOMContentLoaded, 30*time.Second); err != nil {
		return fmt.Errorf("verifying session: %w", err)
	}
	loc, err := a.browser.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(loc, "login") || strings.Contains(loc, "authwall") {
		return fmt.Errorf("session cookie rejected: %w", scraper.ErrAuthWall)
	}
	a.authenticated = true
	a.logger.Info("authenticated session established")
	return nil
}

// BuildSearchURL renders the job search URL with keyword, location,
// experience, job-type, and remote filters.
func (a *LinkedIn) BuildSearchURL(req scraper.CrawlRequest, page int) string {
	params := url.Values{}
	params.Set("keywords", req.Keyword)
	params.Set("refresh", "true")

	if req.Location != "" {
		params.Set("location", req.Location)
	}
	if req.ExperienceLevel != "" {
		if code, ok := linkedInExperienceParams[strings.ToLower(req.ExperienceLevel)]; ok {
			params.Set("f_E", code)
		}
	}
	if jt := req.ExtraFilters["job_type"]; jt != "" {
		if code, ok := linkedInJobTypeParams[strings.ToLower(jt)]; ok {
			params.Set("f_JT", code)
		}
	}
	if req.ExtraFilters["remote"] == "true" {
		params.Set("f_WT", "2")
	}
	if page > 1 {
		params.Set("start", strconv.Itoa((page-1)*linkedInPageSize))
	}
	return linkedInJobsURL + "?" + params.Encode()
}

// JobCards returns the visible cards, or ErrAuthWall when the page is the
// login wall instead of results.
func (a *LinkedIn) JobCards(ctx context.Context) ([]scraper.Element, error) {
	cards, err := a.browser.Query(ctx, linkedInSelectors.jobCard)
	if err != nil {
		return nil, err
	}
	if len(cards) > 0 {
		return cards, nil
	}
	walled, err := a.hitAuthWall(ctx)
	if err != nil {
		return nil, err
	}
	if walled {
		return nil, fmt.Errorf("job search: %w", scraper.ErrAuthWall)
	}
	return nil, nil
}

func (a *LinkedIn) hitAuthWall(ctx context.Context) (bool, error) {
	for _, selector := range []string{linkedInSelectors.authWall, linkedInSelectors.loginForm} {
		ok, err := a.browser.Exists(ctx, selector)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ParseJobCard extracts one listing from a card.
func (a *LinkedIn) ParseJobCard(ctx context.Context, el scraper.Element) (*scraper.JobRecord, error) {
	title := textOf(ctx, el, linkedInSelectors.title)
	if title == "" {
		return nil, nil
	}

	rec := &scraper.JobRecord{
		Title:          title,
		Company:        textOf(ctx, el, linkedInSelectors.company),
		SourcePlatform: scraper.PlatformLinkedIn,
		ScrapedAt:      a.clock.Now(),
	}

	// The metadata line mixes location with job type, separated by a dot.
	if loc := textOf(ctx, el, linkedInSelectors.location); loc != "" {
		rec.Location = strings.TrimSpace(strings.SplitN(loc, "·", 2)[0])
	}

	if dt := attrOf(ctx, el, linkedInSelectors.postedDate, "datetime"); dt != "" {
		if t, err := time.Parse("2006-01-02", dt); err == nil {
			rec.PostedAt = &t
		}
	} else if dateText := textOf(ctx, el, linkedInSelectors.postedDate); dateText != "" {
		rec.PostedAt = scraper.ParsePostedDate(dateText, a.clock.Now())
	}

	if applyText := textOf(ctx, el, linkedInSelectors.easyApply); applyText != "" {
		rec.IsEasyApply = strings.Contains(strings.ToLower(applyText), "easy apply")
	}

	if href := attrOf(ctx, el, linkedInSelectors.title, "href"); href != "" {
		rec.URL = absoluteURL(linkedInBaseURL, href)
	} else {
		rec.URL = fallbackURL(linkedInBaseURL, rec.Title, rec.Company)
	}
	return rec, nil
}

// HasNextPage reports whether the next button is present and enabled.
func (a *LinkedIn) HasNextPage(ctx context.Context) (bool, error) {
	buttons, err := a.browser.Query(ctx, linkedInSelectors.nextPage)
	if err != nil || len(buttons) == 0 {
		return false, err
	}
	_, disabled, err := buttons[0].Attr(ctx, "disabled")
	if err != nil {
		return false, err
	}
	return !disabled, nil
}

// GoToNextPage clicks the next button when present.
func (a *LinkedIn) GoToNextPage(ctx context.Context) (bool, error) {
	ok, err := a.HasNextPage(ctx)
	if err != nil || !ok {
		return false, err
	}
	if err := a.browser.Click(ctx, linkedInSelectors.nextPage); err != nil {
		return false, err
	}
	return true, nil
}
