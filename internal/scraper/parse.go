package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SalaryRange holds a parsed salary in whole currency units. Nil fields mean
// the input did not disclose that bound.
type SalaryRange struct {
	Min *int64
	Max *int64
}

// ExperienceRange holds parsed years of experience.
type ExperienceRange struct {
	Min *int
	Max *int
}

var (
	salaryLakhPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)L?(?:PA|AC)?-?(\d+(?:\.\d+)?)?L(?:PA|AC)?`)
	salaryKPattern    = regexp.MustCompile(`(\d+(?:\.\d+)?)K?-?(\d+(?:\.\d+)?)?K`)
	digitsPattern     = regexp.MustCompile(`\d+`)

	expRangePattern  = regexp.MustCompile(`(\d+)-(\d+)`)
	expPlusPattern   = regexp.MustCompile(`(\d+)\+`)
	expSinglePattern = regexp.MustCompile(`(\d+)`)

	daysAgoPattern  = regexp.MustCompile(`(\d+)\s*days?\s*ago`)
	hoursAgoPattern = regexp.MustCompile(`(\d+)\s*hours?\s*ago`)
)

// CleanText collapses runs of whitespace and trims the result.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ParseSalary turns a free-text salary snippet into a numeric range. It tries
// the lakh convention first ("10-15 LPA" => 1000000..1500000), then thousands
// ("50K-80K"), then bare digit pairs. These are lenient best-effort
// heuristics; unmatched input yields an empty range.
func ParseSalary(raw string) SalaryRange {
	var out SalaryRange
	if raw == "" {
		return out
	}
	cleaned := strings.ToUpper(raw)
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	if m := salaryLakhPattern.FindStringSubmatch(cleaned); m != nil {
		return scaledRange(m[1], m[2], 100_000)
	}
	if m := salaryKPattern.FindStringSubmatch(cleaned); m != nil {
		return scaledRange(m[1], m[2], 1_000)
	}

	numbers := digitsPattern.FindAllString(cleaned, -1)
	switch {
	case len(numbers) >= 2:
		out.Min = parseInt64(numbers[0])
		out.Max = parseInt64(numbers[1])
	case len(numbers) == 1:
		out.Min = parseInt64(numbers[0])
		out.Max = parseInt64(numbers[0])
	}
	return out
}

func scaledRange(minStr, maxStr string, scale float64) SalaryRange {
	var out SalaryRange
	minVal, err := strconv.ParseFloat(minStr, 64)
	if err != nil {
		return out
	}
	lo := int64(minVal * scale)
	out.Min = &lo
	if maxStr != "" {
		if maxVal, err := strconv.ParseFloat(maxStr, 64); err == nil {
			hi := int64(maxVal * scale)
			out.Max = &hi
			return out
		}
	}
	out.Max = &lo
	return out
}

func parseInt64(s string) *int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseExperience turns a free-text experience snippet into a year range:
// "3-5 years" => [3,5], "5+ years" => [5,nil], "5 years" => [5,5].
func ParseExperience(raw string) ExperienceRange {
	var out ExperienceRange
	if raw == "" {
		return out
	}
	cleaned := strings.ReplaceAll(strings.ToLower(raw), " ", "")

	if m := expRangePattern.FindStringSubmatch(cleaned); m != nil {
		out.Min = parseIntPtr(m[1])
		out.Max = parseIntPtr(m[2])
		return out
	}
	if m := expPlusPattern.FindStringSubmatch(cleaned); m != nil {
		out.Min = parseIntPtr(m[1])
		return out
	}
	if m := expSinglePattern.FindStringSubmatch(cleaned); m != nil {
		out.Min = parseIntPtr(m[1])
		out.Max = parseIntPtr(m[1])
	}
	return out
}

func parseIntPtr(s string) *int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &v
}

// ParsePostedDate resolves relative posted-date text ("today", "3 days ago")
// against now, falling back to a few absolute formats. Returns nil when the
// text is unrecognized.
func ParsePostedDate(raw string, now time.Time) *time.Time {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return nil
	}
	switch {
	case strings.Contains(text, "today") || strings.Contains(text, "just now"):
		return &now
	case strings.Contains(text, "yesterday"):
		t := now.AddDate(0, 0, -1)
		return &t
	}
	if m := daysAgoPattern.FindStringSubmatch(text); m != nil {
		days, err := strconv.Atoi(m[1])
		if err == nil {
			t := now.AddDate(0, 0, -days)
			return &t
		}
	}
	if hoursAgoPattern.MatchString(text) || strings.Contains(text, "hour") {
		return &now
	}
	for _, layout := range []string{"2 Jan 2006", "02-01-2006", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
