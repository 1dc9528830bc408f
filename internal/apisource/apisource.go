// Package apisource implements job searchers backed by third-party HTTP APIs
// rather than a live browser. Each searcher applies its own client-side rate
// limit since the upstream quotas are tiny free tiers.
package apisource

import (
	"context"
	"regexp"
	"strings"

	"github.com/autoapply/jobscout/internal/scraper"
)

// Searcher is the API-backed counterpart of a site adapter: one call returns
// up to limit records instead of driving a paginated browser session.
type Searcher interface {
	// Source names the upstream API provider.
	Source() string
	Search(ctx context.Context, req scraper.CrawlRequest, limit int) ([]scraper.JobRecord, error)
}

// snippetLimit caps the description snippet carried on a record.
const snippetLimit = 500

var experiencePattern = regexp.MustCompile(`(\d+)[-\s]*(?:to|-)?\s*(\d+)?\s*(?:years?|yrs?)`)

// extractExperience pulls a "3-5 years" or "5+ years" phrase out of free
// text, best effort.
func extractExperience(text string) string {
	m := experiencePattern.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return ""
	}
	if m[2] != "" {
		return m[1] + "-" + m[2] + " years"
	}
	return m[1] + "+ years"
}

// snippet truncates text for the description snippet field.
func snippet(text string) string {
	if len(text) > snippetLimit {
		return text[:snippetLimit]
	}
	return text
}

// commonSkills is the keyword list scanned against result text to surface
// skill tags from unstructured snippets.
var commonSkills = []string{
	"Python", "Java", "JavaScript", "React", "Node.js", "AWS", "Azure",
	"Machine Learning", "AI", "ML", "Deep Learning", "TensorFlow",
	"PyTorch", "NLP", "SQL", "Docker", "Kubernetes", "FastAPI",
	"Django", "Flask", "REST API", "Git", "CI/CD", "TypeScript",
	"GenAI", "Generative AI", "LLM", "Go", "gRPC",
}

func extractSkills(text string) []string {
	lower := strings.ToLower(text)
	var skills []string
	for _, skill := range commonSkills {
		if strings.Contains(lower, strings.ToLower(skill)) {
			skills = append(skills, skill)
		}
	}
	return skills
}
