// Package adapters implements the per-platform SiteAdapter contract for the
// browser-based job boards. Each adapter owns its selectors and URL scheme;
// everything else comes from the shared crawl engine.
package adapters

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

// Deps carries the shared collaborators every adapter needs.
type Deps struct {
	Browser scraper.Browser
	Clock   scraper.Clock
	Logger  *zap.Logger

	// LinkedInCookie is the li_at session cookie; empty means anonymous.
	LinkedInCookie string
}

// New builds the adapter for a platform. API-backed platforms are served by
// the apisource package, not here.
func New(platform scraper.Platform, deps Deps) (scraper.SiteAdapter, error) {
	switch platform {
	case scraper.PlatformNaukri:
		return NewNaukri(deps), nil
	case scraper.PlatformLinkedIn:
		return NewLinkedIn(deps), nil
	case scraper.PlatformInstahire:
		return NewInstahire(deps), nil
	default:
		return nil, fmt.Errorf("no browser adapter for platform %q", platform)
	}
}

// absoluteURL resolves a card href against the platform base URL.
func absoluteURL(base, href string) string {
	if strings.HasPrefix(href, "/") {
		return base + href
	}
	return href
}

// fallbackURL derives a stable synthetic URL for cards that expose no link,
// so deduplication still has a key to work with.
func fallbackURL(base, title, company string) string {
	sum := md5.Sum([]byte(title + company))
	return fmt.Sprintf("%s/job/%s", base, hex.EncodeToString(sum[:])[:12])
}

// textOf returns the cleaned text of the first descendant matching selector,
// or "" when nothing matches.
func textOf(ctx context.Context, el scraper.Element, selector string) string {
	text, ok, err := el.Text(ctx, selector)
	if err != nil || !ok {
		return ""
	}
	return scraper.CleanText(text)
}

// attrOf returns an attribute of the first descendant matching selector.
func attrOf(ctx context.Context, el scraper.Element, selector, name string) string {
	value, ok, err := el.AttrOf(ctx, selector, name)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// ownAttr returns an attribute of the card element itself.
func ownAttr(ctx context.Context, el scraper.Element, name string) string {
	value, ok, err := el.Attr(ctx, name)
	if err != nil || !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// maxSkillLength filters out sentence-length noise the skill selectors
// sometimes pick up.
const maxSkillLength = 50

func collectSkills(ctx context.Context, el scraper.Element, selector string) []string {
	raw, err := el.Texts(ctx, selector)
	if err != nil {
		return nil
	}
	var skills []string
	for _, s := range raw {
		s = scraper.CleanText(s)
		if s != "" && len(s) < maxSkillLength {
			skills = append(skills, s)
		}
	}
	return skills
}
